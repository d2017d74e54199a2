package cycle

import "sort"

// findPeaks 返回满足最小间距与最小突出度的局部极大值下标，升序。
// 突出度按标准定义：峰高减去通往两侧更高峰（或序列端点）路径上的
// 较高一侧谷底。
func findPeaks(vs []float64, minDist int, minProminence float64) []int {
	n := len(vs)
	candidates := make([]int, 0)
	for i := 1; i < n-1; i++ {
		if vs[i] > vs[i-1] && vs[i] >= vs[i+1] {
			// 平顶只取左缘
			j := i
			for j+1 < n && vs[j+1] == vs[i] {
				j++
			}
			if j+1 >= n || vs[j+1] < vs[i] {
				candidates = append(candidates, i)
			}
			i = j
		}
	}

	kept := make([]int, 0, len(candidates))
	for _, idx := range candidates {
		if prominence(vs, idx) >= minProminence {
			kept = append(kept, idx)
		}
	}

	// 间距约束：按峰高从高到低贪心保留
	sort.Slice(kept, func(a, b int) bool { return vs[kept[a]] > vs[kept[b]] })
	final := make([]int, 0, len(kept))
	for _, idx := range kept {
		ok := true
		for _, prev := range final {
			if abs(idx-prev) < minDist {
				ok = false
				break
			}
		}
		if ok {
			final = append(final, idx)
		}
	}
	sort.Ints(final)
	return final
}

func prominence(vs []float64, peak int) float64 {
	h := vs[peak]

	leftMin := h
	for i := peak - 1; i >= 0; i-- {
		if vs[i] > h {
			break
		}
		if vs[i] < leftMin {
			leftMin = vs[i]
		}
	}
	rightMin := h
	for i := peak + 1; i < len(vs); i++ {
		if vs[i] > h {
			break
		}
		if vs[i] < rightMin {
			rightMin = vs[i]
		}
	}

	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return h - base
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
