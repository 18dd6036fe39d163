package retrieval

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadReport summarises a directory load.
type LoadReport struct {
	Added     int      `json:"added"`
	Unchanged int      `json:"unchanged"`
	Files     []string `json:"files"`
}

// LoadDirectory ingests every .md and .txt file of dir into kb. The title is
// the first "# " heading, else the file name. Ids are stable per file name.
func (s *Service) LoadDirectory(ctx context.Context, kb, dir string) (LoadReport, error) {
	var report LoadReport
	if kb == "" {
		kb = s.defaultKB
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", path, err)
		}
		content := string(raw)
		if strings.TrimSpace(content) == "" {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))

		_, added, err := s.Ingest(ctx, DocumentInput{
			ID:            fmt.Sprintf("doc_%s_%s", kb, stem),
			KnowledgeBase: kb,
			Title:         titleOf(content, stem),
			Content:       content,
			Source:        path,
		})
		if err != nil {
			return report, err
		}
		report.Files = append(report.Files, e.Name())
		if added {
			report.Added++
		} else {
			report.Unchanged++
		}
	}
	s.logger.Info("Directory loaded", "dir", dir, "kb", kb, "added", report.Added, "unchanged", report.Unchanged)
	return report, nil
}

func titleOf(content, fallback string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return strings.ReplaceAll(fallback, "_", " ")
}
