package edit

// DiffLines computes a line diff between two texts using a longest common
// subsequence, emitting removals before additions within each changed
// hunk. Entries here are a handful of lines, so the quadratic table is
// fine.
func DiffLines(old, new []string) []LineChange {
	n, m := len(old), len(new)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if old[i] == new[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []LineChange
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case old[i] == new[j]:
			out = append(out, LineChange{Op: OpKeep, Text: old[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, LineChange{Op: OpRemove, Text: old[i]})
			i++
		default:
			out = append(out, LineChange{Op: OpAdd, Text: new[j]})
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, LineChange{Op: OpRemove, Text: old[i]})
	}
	for ; j < m; j++ {
		out = append(out, LineChange{Op: OpAdd, Text: new[j]})
	}
	return out
}
