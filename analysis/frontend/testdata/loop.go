package main

type CATData *cell

type cell struct{ value int64 }

func CAT_new(v int64) CATData { return &cell{v} }
func CAT_get(h CATData) int64 { return h.value }
func CAT_set(h CATData, v int64) { h.value = v }
func CAT_add(d, x, y CATData) { d.value = x.value + y.value }
func CAT_sub(d, x, y CATData) { d.value = x.value - y.value }

// @Output("5\n")
// @Invocations(0)
func main() {
	x := CAT_new(0)
	one := CAT_new(1)
	for i := 0; i < 5; i++ {
		CAT_add(x, x, one)
	}
	println(CAT_get(x))
}
