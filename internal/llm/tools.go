package llm

// Tool names exposed to the model. The meaning is identical across
// providers; each adapter translates the schema to its backend's
// native function-declaration format.
const (
	ToolReadFile   = "read_file"
	ToolEditFile   = "edit_file"
	ToolDeleteFile = "delete_file"
)

func readFileSchema() ToolSchema {
	return ToolSchema{
		Name:        ToolReadFile,
		Description: "Read the contents of a file in the project. Use this to understand existing code before making changes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": `The file path relative to the project root, e.g. "src/App.tsx" or "package.json"`,
				},
			},
			"required": []string{"path"},
		},
	}
}

func editFileSchema() ToolSchema {
	return ToolSchema{
		Name:        ToolEditFile,
		Description: "Replace the entire content of a file. Provide the COMPLETE new file content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The file path relative to the project root",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The complete new file content",
				},
			},
			"required": []string{"path", "content"},
		},
	}
}

func deleteFileSchema() ToolSchema {
	return ToolSchema{
		Name:        ToolDeleteFile,
		Description: "Delete a file from the project. Use sparingly and only when the user asks for a file to be removed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The file path relative to the project root",
				},
			},
			"required": []string{"path"},
		},
	}
}

// EditorToolSchemas returns the tool schemas offered to the model.
// delete_file is optional; not every deployment enables it.
func EditorToolSchemas(includeDelete bool) []ToolSchema {
	schemas := []ToolSchema{readFileSchema(), editFileSchema()}
	if includeDelete {
		schemas = append(schemas, deleteFileSchema())
	}
	return schemas
}
