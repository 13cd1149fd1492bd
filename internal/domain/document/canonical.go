package document

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Llave reservada para el valor de una hoja.
const valueKey = "_"

// Sealed agrupa las tres vistas del documento que viajan al API.
type Sealed struct {
	Canonical []byte // bytes canónicos (UTF-8, sin espacios)
	Hash      string // sha256 hex en minúsculas de Canonical
	Base64    string // Canonical en base64 estándar
}

// Seal serializa el árbol y calcula hash y base64 sobre los mismos bytes.
func Seal(root *Node) Sealed {
	b := Canonical(root)
	return Sealed{Canonical: b, Hash: Hash(b), Base64: base64.StdEncoding.EncodeToString(b)}
}

// Hash devuelve sha256 hex de los bytes dados.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Canonical serializa el nodo raíz como objeto JSON determinista:
//   - llaves en orden lexicográfico por bytes (atributos, grupos de hijos y "_")
//   - hijos con el mismo nombre en un arreglo, en orden de inserción
//   - sin espacios; Unicode sin escapar salvo lo que exige JSON
//
// El nombre del nodo raíz no se emite. Un árbol mal formado (llave duplicada
// entre atributo e hijo, o literal numérico inválido) es un error de
// programación y provoca panic.
func Canonical(root *Node) []byte {
	var buf bytes.Buffer
	writeObject(&buf, root)
	return buf.Bytes()
}

func writeObject(buf *bytes.Buffer, n *Node) {
	groups := make(map[string][]*Node)
	keys := make([]string, 0, len(n.Attrs)+len(n.Children)+1)
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	for _, c := range n.Children {
		if _, dup := n.Attrs[c.Name]; dup || c.Name == valueKey {
			panic(fmt.Sprintf("document: llave %q duplicada en <%s>", c.Name, n.Name))
		}
		if _, seen := groups[c.Name]; !seen {
			keys = append(keys, c.Name)
		}
		groups[c.Name] = append(groups[c.Name], c)
	}
	if n.hasValue {
		if _, dup := n.Attrs[valueKey]; dup {
			panic(fmt.Sprintf("document: atributo %q reservado en <%s>", valueKey, n.Name))
		}
		keys = append(keys, valueKey)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		switch {
		case k == valueKey:
			if n.numeric {
				if !json.Valid([]byte(n.value)) || !isNumberLiteral(n.value) {
					panic(fmt.Sprintf("document: literal numérico inválido %q en <%s>", n.value, n.Name))
				}
				buf.WriteString(n.value)
			} else {
				writeString(buf, n.value)
			}
		case groups[k] != nil:
			buf.WriteByte('[')
			for j, c := range groups[k] {
				if j > 0 {
					buf.WriteByte(',')
				}
				writeObject(buf, c)
			}
			buf.WriteByte(']')
		default:
			writeString(buf, n.Attrs[k])
		}
	}
	buf.WriteByte('}')
}

func isNumberLiteral(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// writeString escribe s como string JSON. Solo escapa comillas, barra
// invertida y controles; "/" y los caracteres no ASCII van literales.
func writeString(buf *bytes.Buffer, s string) {
	const hexDigits = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"':
				buf.WriteString(`\"`)
			case c == '\\':
				buf.WriteString(`\\`)
			case c == '\n':
				buf.WriteString(`\n`)
			case c == '\r':
				buf.WriteString(`\r`)
			case c == '\t':
				buf.WriteString(`\t`)
			case c == '\b':
				buf.WriteString(`\b`)
			case c == '\f':
				buf.WriteString(`\f`)
			case c < 0x20:
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xF])
			default:
				buf.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteString(`�`)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
