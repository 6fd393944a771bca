package ta

// Last 倒数第 position 个值，越界返回 0
func Last(s []float64, position int) float64 {
	idx := len(s) - 1 - position
	if idx < 0 || position < 0 {
		return 0
	}
	return s[idx]
}

func Crossover(s1, s2 []float64) bool {
	if len(s1) < 2 || len(s2) < 2 {
		return false
	}
	return Last(s1, 0) > Last(s2, 0) && Last(s1, 1) <= Last(s2, 1)
}

func Crossunder(s1, s2 []float64) bool {
	if len(s1) < 2 || len(s2) < 2 {
		return false
	}
	return Last(s1, 0) <= Last(s2, 0) && Last(s1, 1) > Last(s2, 1)
}

func LastValues(s []float64, size int) []float64 {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Lowest 最近 n 根K线中的最低价
func Lowest(low []float64, period int) float64 {
	arr := LastValues(low, period)
	if len(arr) == 0 {
		return 0
	}
	minVal := arr[0]
	for _, value := range arr {
		if value < minVal {
			minVal = value
		}
	}
	return minVal
}

// Highest 最近 n 根K线中的最高价
func Highest(high []float64, period int) float64 {
	arr := LastValues(high, period)
	if len(arr) == 0 {
		return 0
	}
	maxVal := arr[0]
	for _, value := range arr {
		if value > maxVal {
			maxVal = value
		}
	}
	return maxVal
}

// Average 算术平均
func Average(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
