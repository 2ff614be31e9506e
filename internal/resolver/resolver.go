// Package resolver maps a routing label onto a folder in an account's
// folder tree.
//
// Resolution first tries the known top-level categories: a label such as
// "Financiën/Bills" finds the "Financiën" folder and then looks for "Bills"
// beneath it. When that yields nothing the whole tree is searched for a
// folder named exactly like the unmodified label. Searches are depth-first
// pre-order and the first match wins; duplicate names are not reported.
package resolver

import (
	"strings"

	"mail-autosort-go/internal/models"
)

// MaxDepth bounds how deep a search descends. Folders below it are ignored.
const MaxDepth = 128

// Resolver resolves labels against a fixed, ordered list of categories
type Resolver struct {
	categories []string
}

// New creates a resolver for the given categories
func New(categories []string) *Resolver {
	c := make([]string, len(categories))
	copy(c, categories)
	return &Resolver{categories: c}
}

// Categories returns the categories in resolution order
func (r *Resolver) Categories() []string {
	c := make([]string, len(r.categories))
	copy(c, r.categories)
	return c
}

// Resolve returns the destination folder for label, or nil
func (r *Resolver) Resolve(label string, tree []models.Folder) *models.Folder {
	return Resolve(label, tree, r.categories)
}

// Resolve returns the destination folder for label within tree, or nil
func Resolve(label string, tree []models.Folder, categories []string) *models.Folder {
	for _, category := range categories {
		if category == "" || !strings.HasPrefix(label, category) {
			continue
		}
		categoryFolder := FindByName(tree, category)
		if categoryFolder == nil {
			continue
		}
		remainder := strings.TrimPrefix(label, category+"/")
		if target := FindByName(categoryFolder.SubFolders, remainder); target != nil {
			return target
		}
		// a found category without the subfolder does not stop the scan
	}

	return FindByName(tree, label)
}

type frame struct {
	folder *models.Folder
	depth  int
}

// FindByName searches folders depth-first, pre-order, and returns the first
// folder whose name equals name exactly.
func FindByName(folders []models.Folder, name string) *models.Folder {
	stack := make([]frame, 0, len(folders))
	pushChildren := func(children []models.Folder, depth int) {
		// reverse push so the first child is popped first
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{folder: &children[i], depth: depth})
		}
	}
	pushChildren(folders, 1)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.folder.Name == name {
			return top.folder
		}
		if top.depth < MaxDepth {
			pushChildren(top.folder.SubFolders, top.depth+1)
		}
	}
	return nil
}

// Walk visits every folder pre-order with its slash-joined path, stopping
// early when fn returns false.
func Walk(folders []models.Folder, fn func(path string, f *models.Folder) bool) {
	type pathFrame struct {
		frame
		path string
	}
	stack := make([]pathFrame, 0, len(folders))
	push := func(children []models.Folder, depth int, parent string) {
		for i := len(children) - 1; i >= 0; i-- {
			p := children[i].Name
			if parent != "" {
				p = parent + "/" + p
			}
			stack = append(stack, pathFrame{frame: frame{folder: &children[i], depth: depth}, path: p})
		}
	}
	push(folders, 1, "")

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.path, top.folder) {
			return
		}
		if top.depth < MaxDepth {
			push(top.folder.SubFolders, top.depth+1, top.path)
		}
	}
}
