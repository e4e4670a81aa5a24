// Package testing provides fixtures and helpers for exercising replica.
package testing

import (
	"slices"
	"testing"
)

// Person is the root of the fixture embedding chain.
type Person struct {
	ID    string
	Name  string
	Notes []string `clone:"-"`
}

// Employee embeds Person and clones Skills through a method.
type Employee struct {
	Person
	Skills  []string `clone:"method:CloneSkills"`
	Reports []*Employee
	salary  int
}

// CloneSkills copies the skill list.
func (e *Employee) CloneSkills() []string { return slices.Clone(e.Skills) }

// Salary returns the unexported salary.
func (e *Employee) Salary() int { return e.salary }

// Manager is a three-level chain with a map and a back reference.
type Manager struct {
	Employee
	Budget map[string]int
	Deputy *Manager
}

// Badge implements Cloner[Badge].
type Badge struct {
	Serial int
}

// Clone implements Cloner[Badge].
func (b Badge) Clone() Badge { return Badge{Serial: b.Serial + 1} }

// NewEmployee returns an employee with n direct reports.
func NewEmployee(tb testing.TB, id string, reports int) *Employee {
	tb.Helper()
	e := &Employee{
		Person: Person{ID: id, Name: "employee " + id, Notes: []string{"private"}},
		Skills: []string{"go", "sql"},
		salary: 100,
	}
	for i := 0; i < reports; i++ {
		e.Reports = append(e.Reports, &Employee{
			Person: Person{ID: id + "." + string(rune('a'+i%26))},
			Skills: []string{"go"},
			salary: 50,
		})
	}
	return e
}

// NewManager returns a manager whose deputy points back at it.
func NewManager(tb testing.TB) *Manager {
	tb.Helper()
	m := &Manager{
		Employee: *NewEmployee(tb, "m", 3),
		Budget:   map[string]int{"travel": 10, "tools": 20},
	}
	m.Deputy = &Manager{
		Employee: *NewEmployee(tb, "d", 0),
		Deputy:   m,
	}
	return m
}
