package replica_test

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/zoobzio/replica"
)

type Account struct {
	ID     string
	Tokens []string `clone:"-"`
}

type Customer struct {
	Account
	Orders []int `clone:"method:CopyOrders"`
	Email  string
}

func (c *Customer) CopyOrders() []int { return slices.Clone(c.Orders) }

func ExampleClone() {
	orig := Customer{
		Account: Account{ID: "c-1", Tokens: []string{"secret"}},
		Orders:  []int{1, 2},
		Email:   "a@example.com",
	}

	c, err := replica.Clone(context.Background(), orig)
	if err != nil {
		panic(err)
	}
	c.Orders[0] = 99

	fmt.Println(c.ID, c.Tokens == nil, orig.Orders[0], c.Email)
	// Output: c-1 true 1 a@example.com
}

func ExampleMembers() {
	members, err := replica.Members(reflect.TypeFor[Customer](), replica.AllFields)
	if err != nil {
		panic(err)
	}
	for _, m := range members {
		fmt.Println(m)
	}
	// Output:
	// Customer.Orders
	// Customer.Email
	// Account.ID
}

func ExampleCustomStrategyName() {
	m, err := replica.LookupMember(reflect.TypeFor[Customer](), "Orders")
	if err != nil {
		panic(err)
	}
	name, ok := replica.CustomStrategyName(m)
	fmt.Println(name, ok)
	// Output: CopyOrders true
}
