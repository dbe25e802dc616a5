package registry

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/st-keller/statebind-client/binding"
	"github.com/st-keller/statebind-client/dom"
)

// Declaration counts the elements declaring one binding kind for one key.
type Declaration struct {
	Key      string       `json:"key"`
	Kind     binding.Kind `json:"kind"`
	Elements int          `json:"elements"`
}

// Declarations indexes the binding attributes present in doc, sorted by key
// then kind. Empty keys are skipped since they never bind.
func Declarations(doc *dom.Document) ([]Declaration, error) {
	var decls []Declaration
	for _, kind := range binding.Kinds {
		elements, err := doc.ElementsWithAttr(kind.Attr())
		if err != nil {
			return nil, fmt.Errorf("scan %s bindings: %w", kind, err)
		}

		byKey := lo.GroupBy(elements, func(el *dom.Element) string {
			key, _ := el.Attr(kind.Attr())
			return key
		})
		for key, group := range byKey {
			if key == "" {
				continue
			}
			decls = append(decls, Declaration{Key: key, Kind: kind, Elements: len(group)})
		}
	}

	sort.Slice(decls, func(i, j int) bool {
		if decls[i].Key != decls[j].Key {
			return decls[i].Key < decls[j].Key
		}
		return decls[i].Kind < decls[j].Kind
	})
	return decls, nil
}
