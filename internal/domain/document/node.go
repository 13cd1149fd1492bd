// Package document modela el documento fiscal como un árbol etiquetado
// (nombre, atributos, hijos ordenados y valor opcional) y define su forma
// canónica JSON, usada para hash, firma y envío a MyInvois.
package document

// Node es un elemento del documento. Un nodo hoja lleva valor (HasValue);
// un nodo contenedor solo lleva atributos e hijos.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node

	value    string
	hasValue bool
	numeric  bool
}

// New crea un elemento contenedor sin valor.
func New(name string, children ...*Node) *Node {
	n := &Node{Name: name}
	n.Children = append(n.Children, children...)
	return n
}

// Text crea una hoja con valor de texto.
func Text(name, value string) *Node {
	return &Node{Name: name, value: value, hasValue: true}
}

// Number crea una hoja con un literal numérico JSON ya formateado (ej. "3569.00").
func Number(name, literal string) *Node {
	return &Node{Name: name, value: literal, hasValue: true, numeric: true}
}

// Attr fija un atributo y devuelve el propio nodo para encadenar.
func (n *Node) Attr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
	return n
}

// Add agrega hijos al final y devuelve el propio nodo.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Value devuelve el valor de la hoja ("" si no tiene).
func (n *Node) Value() string { return n.value }

// HasValue indica si el nodo es una hoja con valor.
func (n *Node) HasValue() bool { return n.hasValue }

// IsNumeric indica si el valor se serializa como número JSON.
func (n *Node) IsNumeric() bool { return n.numeric }

// SetValue reemplaza el valor de texto de la hoja.
func (n *Node) SetValue(v string) {
	n.value = v
	n.hasValue = true
	n.numeric = false
}

// Child devuelve el primer hijo con ese nombre, o nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed devuelve todos los hijos con ese nombre en orden.
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Path recorre primeros hijos por nombre. Devuelve nil si algún tramo falta.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// PathValue es Path(...).Value() tolerante a nil.
func (n *Node) PathValue(names ...string) string {
	if p := n.Path(names...); p != nil {
		return p.value
	}
	return ""
}

// Remove elimina todos los hijos con ese nombre.
func (n *Node) Remove(name string) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(n.Children); i++ {
		n.Children[i] = nil
	}
	n.Children = kept
}

// Replace sustituye el primer hijo llamado como repl.Name; si no existe lo agrega.
func (n *Node) Replace(repl *Node) {
	for i, c := range n.Children {
		if c.Name == repl.Name {
			n.Children[i] = repl
			return
		}
	}
	n.Children = append(n.Children, repl)
}

// Clone copia profunda del subárbol.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Name: n.Name, value: n.value, hasValue: n.hasValue, numeric: n.numeric}
	if n.Attrs != nil {
		cp.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			cp.Attrs[k] = v
		}
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return cp
}
