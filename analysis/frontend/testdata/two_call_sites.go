package main

type CATData *cell

type cell struct{ value int64 }

func CAT_new(v int64) CATData { return &cell{v} }
func CAT_get(h CATData) int64 { return h.value }
func CAT_set(h CATData, v int64) { h.value = v }
func CAT_add(d, x, y CATData) { d.value = x.value + y.value }
func CAT_sub(d, x, y CATData) { d.value = x.value - y.value }

func mk() CATData {
	return CAT_new(1)
}

// @Output("1\n1\n")
// @Invocations(0)
func main() {
	println(CAT_get(mk()))
	println(CAT_get(mk()))
}
