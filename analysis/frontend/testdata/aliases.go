package main

type CATData *cell

type cell struct{ value int64 }

func CAT_new(v int64) CATData { return &cell{v} }
func CAT_get(h CATData) int64 { return h.value }
func CAT_set(h CATData, v int64) { h.value = v }
func CAT_add(d, x, y CATData) { d.value = x.value + y.value }
func CAT_sub(d, x, y CATData) { d.value = x.value - y.value }

// @Output("10\n")
func main() {
	x := CAT_new(3)
	s1 := &x
	s2 := &x
	CAT_set(*s1, 5)
	CAT_add(x, *s1, *s2)
	println(CAT_get(x))
}
