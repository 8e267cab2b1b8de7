package sbtree_test

import (
	"fmt"

	"github.com/hupe1980/sbtree"
)

func Example() {
	t, err := sbtree.New()
	if err != nil {
		panic(err)
	}
	defer t.Close()

	for k := uint64(1); k <= 1000; k++ {
		_ = t.Insert(k, k*10)
	}
	_ = t.Flush()

	if v, ok := t.Lookup(500); ok {
		fmt.Println("lookup(500) =", v)
	}
	fmt.Println("scan(1, 5) =", t.Scan(1, 5))
	// Output:
	// lookup(500) = 5000
	// scan(1, 5) = [10 20 30 40 50]
}

func ExampleTree_RangeCursor() {
	t, err := sbtree.New()
	if err != nil {
		panic(err)
	}
	defer t.Close()

	for k := uint64(1); k <= 100; k++ {
		_ = t.Insert(k, k)
	}
	_ = t.Flush()

	c := t.RangeCursor(10, 13)
	for kv, ok := c.Next(); ok; kv, ok = c.Next() {
		fmt.Println(kv.Key, kv.Value)
	}
	// Output:
	// 10 10
	// 11 11
	// 12 12
	// 13 13
}

func ExampleTree_Range() {
	t, err := sbtree.New()
	if err != nil {
		panic(err)
	}
	defer t.Close()

	for k := uint64(1); k <= 10; k++ {
		_ = t.Insert(k, k*k)
	}
	_ = t.Flush()

	for k, v := range t.Range(3, 5) {
		fmt.Println(k, v)
	}
	// Output:
	// 3 9
	// 4 16
	// 5 25
}
