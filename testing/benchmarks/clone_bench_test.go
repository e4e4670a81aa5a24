package benchmarks

import (
	"context"
	"reflect"
	"testing"

	"github.com/zoobzio/replica"
	replicatest "github.com/zoobzio/replica/testing"
)

func BenchmarkClone_Employee(b *testing.B) {
	e := replicatest.NewEmployee(b, "1", 10)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = replica.Clone(ctx, e)
	}
}

func BenchmarkClone_ManagerCycle(b *testing.B) {
	m := replicatest.NewManager(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = replica.Clone(ctx, m)
	}
}

func BenchmarkClone_ExportedOnly(b *testing.B) {
	e := replica.New(replica.WithVisibility(replica.Exported))
	m := replicatest.NewManager(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = replica.CloneWith(ctx, e, m)
	}
}

func BenchmarkClone_ByteSlice(b *testing.B) {
	data := make([]byte, 4096)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = replica.Clone(ctx, data)
	}
}

func BenchmarkMembers_Cached(b *testing.B) {
	typ := reflect.TypeFor[replicatest.Manager]()
	_, _ = replica.Members(typ, replica.AllFields)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = replica.Members(typ, replica.AllFields)
	}
}

func BenchmarkDiscoverMembers(b *testing.B) {
	typ := reflect.TypeFor[replicatest.Manager]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = replica.DiscoverMembers(typ, replica.AllFields)
	}
}
