package slot

// longestRun 返回线上最长同符号连续段的起点和长度，长度相同取最左
func longestRun(grid [][]Symbol, line []Position) (start, length int) {
	bestStart, bestLen := 0, 1
	curStart, curLen := 0, 1
	for i := 1; i < len(line); i++ {
		prev := grid[line[i-1].Row][line[i-1].Reel]
		cur := grid[line[i].Row][line[i].Reel]
		if cur == prev {
			curLen++
		} else {
			curStart, curLen = i, 1
		}
		if curLen > bestLen {
			bestStart, bestLen = curStart, curLen
		}
	}
	return bestStart, bestLen
}

// matchRule 在规则表中找同符号、Count <= observed 的最大Count规则
func matchRule(rules []PayRule, symbol Symbol, observed int) (PayRule, bool) {
	var best PayRule
	found := false
	for _, rule := range rules {
		if rule.Symbol != symbol || rule.Count > observed {
			continue
		}
		if !found || rule.Count > best.Count {
			best = rule
			found = true
		}
	}
	return best, found
}

// findSymbol 行优先返回符号的所有位置
func findSymbol(grid [][]Symbol, symbol Symbol) []Position {
	var positions []Position
	for row := range grid {
		for reel, s := range grid[row] {
			if s == symbol {
				positions = append(positions, Position{Row: row, Reel: reel})
			}
		}
	}
	return positions
}
