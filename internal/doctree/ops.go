package doctree

import "strings"

// ops.go - Pure operations over the document tree.
//
// Every mutating operation returns a fresh tree built by structural
// copying; the input tree is never modified. Paths are "/"-joined
// segments relative to the root, compared by exact string equality
// (no "." or ".." resolution). The root folder's own name is never
// part of a path.

// Find resolves a path to a file. Returns false if any segment is
// absent or the terminal segment is a folder.
func Find(root *Folder, path string) (*File, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	return findIn(root.Items, segments)
}

func findIn(items []Node, segments []string) (*File, bool) {
	head, rest := segments[0], segments[1:]

	for _, item := range items {
		switch node := item.(type) {
		case *Folder:
			if len(rest) > 0 && node.Name == head {
				if file, ok := findIn(node.Items, rest); ok {
					return file, true
				}
			}
		case *File:
			if len(rest) == 0 && fileName(node) == head {
				return node, true
			}
		}
	}
	return nil, false
}

// Update replaces the content of an existing file. It does not create
// missing paths; the second return reports whether the path resolved.
func Update(root *Folder, path, content string) (*Folder, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return root, false
	}

	items, replaced := updateIn(root.Items, segments, content)
	if !replaced {
		return root, false
	}
	return &Folder{Name: root.Name, Items: items}, true
}

func updateIn(items []Node, segments []string, content string) ([]Node, bool) {
	head, rest := segments[0], segments[1:]

	out := make([]Node, len(items))
	replaced := false
	for i, item := range items {
		out[i] = item
		if replaced {
			continue
		}
		switch node := item.(type) {
		case *Folder:
			// A name match alone is not enough: when sibling folders
			// share a name, descend into each until one actually
			// contains the file, the same way findIn backtracks.
			if len(rest) > 0 && node.Name == head {
				if children, ok := updateIn(node.Items, rest, content); ok {
					out[i] = &Folder{Name: node.Name, Items: children}
					replaced = true
				}
			}
		case *File:
			if len(rest) == 0 && fileName(node) == head {
				out[i] = &File{Name: node.Name, Extension: node.Extension, Content: content}
				replaced = true
			}
		}
	}
	return out, replaced
}

// Upsert writes content to path, behaving as Update when the file
// exists and otherwise creating every missing intermediate folder and
// inserting a new file. The final segment is split on its last "." into
// name and extension; no dot means empty extension.
func Upsert(root *Folder, path, content string) *Folder {
	if updated, ok := Update(root, path, content); ok {
		return updated
	}

	segments := splitPath(path)
	if len(segments) == 0 {
		return root
	}
	return &Folder{Name: root.Name, Items: insertIn(root.Items, segments, content)}
}

func insertIn(items []Node, segments []string, content string) []Node {
	head, rest := segments[0], segments[1:]

	if len(rest) == 0 {
		return append(copyItems(items), newFile(head, content))
	}

	out := copyItems(items)
	for i, item := range out {
		if folder, ok := item.(*Folder); ok && folder.Name == head {
			out[i] = &Folder{Name: folder.Name, Items: insertIn(folder.Items, rest, content)}
			return out
		}
	}

	// No folder with this name yet: create the whole remaining chain.
	return append(out, &Folder{Name: head, Items: insertIn(nil, rest, content)})
}

// Remove deletes the node at path, file or explicitly targeted folder.
// Emptied ancestor folders are never pruned. The second return reports
// whether anything was removed.
func Remove(root *Folder, path string) (*Folder, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return root, false
	}

	items, removed := removeIn(root.Items, segments)
	if !removed {
		return root, false
	}
	return &Folder{Name: root.Name, Items: items}, true
}

func removeIn(items []Node, segments []string) ([]Node, bool) {
	head, rest := segments[0], segments[1:]

	out := make([]Node, 0, len(items))
	removed := false
	for _, item := range items {
		if removed {
			out = append(out, item)
			continue
		}
		switch node := item.(type) {
		case *Folder:
			if len(rest) > 0 && node.Name == head {
				children, ok := removeIn(node.Items, rest)
				if ok {
					out = append(out, &Folder{Name: node.Name, Items: children})
					removed = true
					continue
				}
			} else if len(rest) == 0 && node.Name == head {
				removed = true
				continue
			}
		case *File:
			if len(rest) == 0 && fileName(node) == head {
				removed = true
				continue
			}
		}
		out = append(out, item)
	}
	return out, removed
}

// ListPaths returns every path in the tree in pre-order, with folders
// emitting a "name/" sentinel entry before their children. The output
// is deterministic for a given tree, which keeps the file-tree context
// string handed to the model reproducible.
func ListPaths(root *Folder) []string {
	return listIn(root.Items, "")
}

func listIn(items []Node, prefix string) []string {
	paths := make([]string, 0, len(items))
	for _, item := range items {
		switch node := item.(type) {
		case *Folder:
			full := joinPath(prefix, node.Name)
			paths = append(paths, full+"/")
			paths = append(paths, listIn(node.Items, full)...)
		case *File:
			paths = append(paths, joinPath(prefix, fileName(node)))
		}
	}
	return paths
}

func newFile(segment, content string) *File {
	name, ext := segment, ""
	if idx := strings.LastIndex(segment, "."); idx >= 0 {
		name, ext = segment[:idx], segment[idx+1:]
	}
	return &File{Name: name, Extension: ext, Content: content}
}

func copyItems(items []Node) []Node {
	out := make([]Node, len(items))
	copy(out, items)
	return out
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
