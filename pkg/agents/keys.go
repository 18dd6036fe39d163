package agents

// Context keys written by the built-in agents on top of the kernel keys.
const (
	KeySupervisorGuidance = "supervisor_guidance"
	KeyToolsToExecute     = "tools_to_execute"
	KeySummary            = "summary"
	KeyFormatted          = "formatted_content"
	KeyOutputFormat       = "output_format"
	KeyCodeLanguage       = "code_language"
	KeyTransformed        = "transformed_content"
	KeyTranslated         = "translated_content"
)
