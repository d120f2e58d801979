package objectstore

import "github.com/spf13/afero"

// NewLocalFS builds a Store backed by the real filesystem rooted at root.
func NewLocalFS(root string) Store {
	return newAferoStore(afero.NewOsFs(), root)
}
