package properties

import (
	"fmt"
	"testing"
)

// benchmarkResult is a package-level variable assigned inside benchmark loops
// so the compiler cannot optimize away the call being measured.
var benchmarkResult Map

// seedRegistry builds a registry holding one map shaped like a typical
// install property set: service identity plus `size` resource attributes.
func seedRegistry(size int) (*registry, Handle) {
	r := NewRegistry().(*registry)
	h := r.New()
	_ = r.Set(h, KeyServiceName, "checkout")
	_ = r.Set(h, KeyServiceVersion, "2.4.1")
	for i := 0; i < size; i++ {
		_ = r.Set(h, fmt.Sprintf("%skey_%d", KeyAttrPrefix, i), "value")
	}
	return r, h
}

// BenchmarkSnapshot_UnsafeDirectReference reads the internal map with no
// copying. This is the theoretical performance ceiling and the baseline the
// safe Snapshot path is compared against.
func BenchmarkSnapshot_UnsafeDirectReference(b *testing.B) {
	r, h := seedRegistry(16)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchmarkResult = r.maps[h.id]
	}
}

// BenchmarkSnapshot_SafeCopy measures the production Snapshot path: a full
// copy under the read lock, which is what every install operation consumes.
func BenchmarkSnapshot_SafeCopy(b *testing.B) {
	r, h := seedRegistry(16)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchmarkResult, _ = r.Snapshot(h)
	}
}

// BenchmarkHandleChurn measures the allocate/populate/release cycle a host
// performs around each install.
func BenchmarkHandleChurn(b *testing.B) {
	r := NewRegistry().(*registry)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h := r.New()
		_ = r.Set(h, KeyServiceName, "checkout")
		_ = r.Set(h, KeyOTLPEndpoint, "collector:4317")
		r.Delete(h)
	}
}
