package main

type CATData *cell

type cell struct{ value int64 }

func CAT_new(v int64) CATData { return &cell{v} }
func CAT_get(h CATData) int64 { return h.value }
func CAT_set(h CATData, v int64) { h.value = v }
func CAT_add(d, x, y CATData) { d.value = x.value + y.value }
func CAT_sub(d, x, y CATData) { d.value = x.value - y.value }

var calls int

func scale(n int) int {
	calls++
	return n*3 - n/2 + n%4 - (n &^ 1) + (n << 2 >> 1) ^ -n
}

func sign(n int) int {
	if n < 0 {
		return -1
	} else if n == 0 {
		return 0
	}
	return 1
}

// @Output("-28 true\n")
func main() {
	x := CAT_new(int64(scale(7)))
	y := CAT_new(int64(sign(-3) + sign(0) + sign(9)))
	CAT_sub(x, x, y)
	println(CAT_get(x), !(calls > 1))
}
