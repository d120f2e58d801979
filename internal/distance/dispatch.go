package distance

import "fmt"

// SelectKernel resolves a metric name to its Kernel. Dispatch happens once,
// at collection-open time, producing a function value stored on the index
// rather than a switch evaluated per distance call.
//
// This build ships the scalar kernels only. A vectorized amd64/arm64
// implementation would live behind build-tag-gated files
// (dispatch_amd64.go / dispatch_arm64.go) selecting an AVX2/NEON Fn at
// package init via cpuid feature detection, with SelectKernel unchanged;
// see DESIGN.md for why that code is not included here.
func SelectKernel(metric string) (Kernel, error) {
	switch metric {
	case "l2":
		return L2Kernel, nil
	case "cosine":
		return CosineKernel, nil
	case "dot":
		return DotKernel, nil
	default:
		return Kernel{}, fmt.Errorf("distance: unknown metric %q", metric)
	}
}
