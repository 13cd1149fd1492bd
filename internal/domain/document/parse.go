package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// Parse reconstruye el árbol a partir de su forma canónica JSON. Los
// valores de hoja numéricos conservan su literal exacto, de modo que
// Canonical(Parse(b)) reproduce b byte a byte.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode canonical json: %w", err)
	}
	root := &Node{}
	if err := fill(root, raw); err != nil {
		return nil, err
	}
	return root, nil
}

// ParseBase64 decodifica el payload almacenado (base64) y lo parsea.
func ParseBase64(payload string) (*Node, error) {
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload base64: %w", err)
	}
	return Parse(b)
}

func fill(n *Node, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := obj[k].(type) {
		case []any:
			for i, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("%s.%s[%d]: se esperaba objeto", n.Name, k, i)
				}
				child := &Node{Name: k}
				if err := fill(child, m); err != nil {
					return err
				}
				n.Children = append(n.Children, child)
			}
		case string:
			if k == valueKey {
				n.value, n.hasValue = v, true
			} else {
				n.Attr(k, v)
			}
		case json.Number:
			if k == valueKey {
				n.value, n.hasValue, n.numeric = v.String(), true, true
			} else {
				n.Attr(k, v.String())
			}
		case bool, nil:
			return fmt.Errorf("%s.%s: tipo no soportado", n.Name, k)
		default:
			return fmt.Errorf("%s.%s: tipo no soportado %T", n.Name, k, v)
		}
	}
	return nil
}
