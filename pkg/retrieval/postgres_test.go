package retrieval_test

import (
	"context"
	"os"
	"testing"

	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/retrieval"
	"github.com/stretchr/testify/require"
)

func TestPGStore_Contract(t *testing.T) {
	url := os.Getenv("LATTICE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LATTICE_TEST_DATABASE_URL not set")
	}

	store, err := retrieval.NewPGStore(context.Background(), url, 3, retrieval.WithTable("lattice_contract_documents"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	ports.RunVectorStoreContract(t, store)
}
