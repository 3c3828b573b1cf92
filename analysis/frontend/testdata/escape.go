package main

type CATData *cell

type cell struct{ value int64 }

func CAT_new(v int64) CATData { return &cell{v} }
func CAT_get(h CATData) int64 { return h.value }
func CAT_set(h CATData, v int64) { h.value = v }
func CAT_add(d, x, y CATData) { d.value = x.value + y.value }
func CAT_sub(d, x, y CATData) { d.value = x.value - y.value }

var g CATData

//catopt:export
func bump() {
	CAT_add(g, g, g)
}

// @Output("4\n")
func main() {
	x := CAT_new(2)
	g = x
	bump()
	println(CAT_get(x))
}
