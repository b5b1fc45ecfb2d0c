package doctree

import "encoding/json"

// Node is either a *File or a *Folder. The JSON wire shape matches the
// editor client's project tree: folders carry "folderName" and "items",
// files carry "filename", "fileExtension" and "content".
type Node interface {
	nodeName() string
}

// File is a leaf node. Content is the complete text of the file.
type File struct {
	Name      string `json:"filename"`
	Extension string `json:"fileExtension"`
	Content   string `json:"content"`
}

// Folder is a branch node. Items preserves insertion order; names need
// not be unique, path resolution takes the first match.
type Folder struct {
	Name  string `json:"folderName"`
	Items []Node `json:"items"`
}

func (f *File) nodeName() string   { return f.Name }
func (f *Folder) nodeName() string { return f.Name }

// UnmarshalJSON decodes a folder whose items may be files or nested
// folders, distinguished by the presence of the "folderName" key.
func (f *Folder) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string            `json:"folderName"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Name = raw.Name
	f.Items = make([]Node, 0, len(raw.Items))
	for _, item := range raw.Items {
		node, err := unmarshalNode(item)
		if err != nil {
			return err
		}
		f.Items = append(f.Items, node)
	}
	return nil
}

func unmarshalNode(data []byte) (Node, error) {
	var probe struct {
		FolderName *string `json:"folderName"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if probe.FolderName != nil {
		var folder Folder
		if err := json.Unmarshal(data, &folder); err != nil {
			return nil, err
		}
		return &folder, nil
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// fileName joins a file's name and extension into its path segment.
// A file with no extension is addressed by its bare name.
func fileName(f *File) string {
	if f.Extension == "" {
		return f.Name
	}
	return f.Name + "." + f.Extension
}
