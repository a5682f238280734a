package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool names exposed over MCP.
const (
	ToolEncrypt      = "timelock_encrypt"
	ToolStatus       = "check_decryption_status"
	ToolDecrypt      = "decrypt_timelock_message"
	ToolUnixTime     = "get_unix_timestamp"
	ToolCurrentTime  = "get_current_time"
	ToolExplain      = "explain_timelock_encryption"
	schemaURLPattern = "https://timelock.schemas.local/tools/%s.schema.json"
)

// ToolDef is a tool as advertised by tools/list.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type catalogEntry struct {
	def    ToolDef
	schema *jsonschema.Schema
}

// Catalog holds tool definitions and their compiled argument schemas.
// It is immutable after NewCatalog.
type Catalog struct {
	order   []string
	entries map[string]catalogEntry
}

var toolDefs = []ToolDef{
	{
		Name: ToolEncrypt,
		Description: "Encrypt a message so it can only be decrypted after a future time. " +
			"unlock_time accepts a Unix timestamp in seconds ('1782360000'), a relative time " +
			"('3 months from now', '2 hours from now') or a date ('2025-12-25', 'January 15, 2025'). " +
			"The unlock time must be at least one minute away. Save the returned identity and " +
			"encrypted_data: both are needed to decrypt and nothing is stored by the server.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {"type": "string", "minLength": 1, "description": "Text to encrypt"},
				"unlock_time": {"type": "string", "minLength": 1, "description": "When the message becomes decryptable"}
			},
			"required": ["message", "unlock_time"],
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolStatus,
		Description: "Check whether a timelocked message can be decrypted yet.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"identity": {"type": "string", "minLength": 1, "description": "Identity returned by timelock_encrypt"}
			},
			"required": ["identity"],
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolDecrypt,
		Description: "Decrypt a timelocked message once its unlock time has passed. Returns status 'locked' before then.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"identity": {"type": "string", "minLength": 1, "description": "Identity returned by timelock_encrypt"},
				"encrypted_data": {"type": "string", "minLength": 1, "description": "encrypted_data returned by timelock_encrypt"}
			},
			"required": ["identity", "encrypted_data"],
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolUnixTime,
		Description: "Convert a time expression such as 'now', '3 months from now' or '2024-12-25' to a Unix timestamp.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"time_expression": {"type": "string", "default": "now", "description": "Time to convert"}
			},
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolCurrentTime,
		Description: "Get the current date and time in UTC.",
		InputSchema: json.RawMessage(`{"type": "object", "additionalProperties": false}`),
	},
	{
		Name:        ToolExplain,
		Description: "Explain how timelock encryption works and how to use these tools.",
		InputSchema: json.RawMessage(`{"type": "object", "additionalProperties": false}`),
	},
}

// NewCatalog compiles the argument schema of every tool.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{entries: make(map[string]catalogEntry, len(toolDefs))}

	for _, def := range toolDefs {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		url := fmt.Sprintf(schemaURLPattern, def.Name)
		if err := compiler.AddResource(url, strings.NewReader(string(def.InputSchema))); err != nil {
			return nil, fmt.Errorf("tool %s: schema load failed: %w", def.Name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool %s: schema compile failed: %w", def.Name, err)
		}

		c.order = append(c.order, def.Name)
		c.entries[def.Name] = catalogEntry{def: def, schema: compiled}
	}
	return c, nil
}

// List returns the tool definitions in a stable order.
func (c *Catalog) List() []ToolDef {
	defs := make([]ToolDef, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.entries[name].def)
	}
	return defs
}

// Has reports whether name is a known tool.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Validate checks args against the tool's schema. A nil args map is
// validated as an empty object.
func (c *Catalog) Validate(name string, args map[string]any) error {
	entry, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}

	var doc any = map[string]any{}
	if args != nil {
		doc = args
	}
	if err := entry.schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return nil
}
