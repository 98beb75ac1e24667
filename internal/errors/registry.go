package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://eventreduce.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Engine Errors (E001-E099)
	// ============================================

	"E001": {
		Category: CategoryEngine,
		Message:  "Engine failure",
		Detail:   "A formula, reducer or reaction panicked with an error that has no catalogue code.",
		DocURL:   docBase + "E001",
	},
	"E006": {
		Category: CategoryEngine,
		Message:  "Circular dependency detected",
		Detail:   "A derivation read itself while computing, directly or through other derivations, or its formula wrote to a cell it depends on.",
		DocURL:   docBase + "E006",
	},
	"E007": {
		Category: CategoryEngine,
		Message:  "Reducer failed",
		Detail:   "A reducer panicked while folding an event. The reduction kept the value it had before the event.",
		DocURL:   docBase + "E007",
	},
	"E008": {
		Category: CategoryEngine,
		Message:  "Invalid model declaration",
		Detail:   "A model cell was declared with a value that was not produced by the expected constructor, or a key was reused with a different type.",
		DocURL:   docBase + "E008",
	},
	"E009": {
		Category: CategoryEngine,
		Message:  "Reaction storm",
		Detail:   "A scheduler flush kept queuing new reactions beyond its round limit. A reaction probably writes to a cell that re-triggers it.",
		DocURL:   docBase + "E009",
	},
	"E010": {
		Category: CategoryEngine,
		Message:  "Invalid event payload",
		Detail:   "The payload could not be decoded into the event's payload type.",
		DocURL:   docBase + "E010",
	},

	// ============================================
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid eventreduce config",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   docBase + "E120",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Missing required configuration",
		Detail:   "A required configuration field is missing.",
		DocURL:   docBase + "E121",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "Port must be between 1 and 65535.",
		DocURL:   docBase + "E122",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field has a value outside its allowed set.",
		DocURL:   docBase + "E123",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Config file already exists",
		Detail:   "Refusing to overwrite an existing configuration file.",
		DocURL:   docBase + "E140",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Config file not found",
		Detail:   "No eventreduce.yaml or eventreduce.json was found in the directory or its parents.",
		DocURL:   docBase + "E141",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Archive failed",
		Detail:   "The recording could not be written to the archive.",
		DocURL:   docBase + "E142",
	},
	"E143": {
		Category: CategoryCLI,
		Message:  "Devtools server failed",
		Detail:   "The devtools server stopped with an error.",
		DocURL:   docBase + "E143",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
