// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package victron

// Number is any type a MovingAverage can hold.
type Number interface {
	~int | ~int32 | ~int64 | ~uint32 | ~float32 | ~float64
}

// MovingAverage is a fixed window arithmetic mean.
type MovingAverage[T Number] struct {
	window []T
	sum    T
	index  int
	count  int
}

// NewMovingAverage creates an average over the last size samples.
func NewMovingAverage[T Number](size int) *MovingAverage[T] {
	if size < 1 {
		size = 1
	}
	return &MovingAverage[T]{window: make([]T, size)}
}

// Add pushes a sample, evicting the oldest once the window is full.
func (m *MovingAverage[T]) Add(v T) {
	if m.count < len(m.window) {
		m.count++
	} else {
		m.sum -= m.window[m.index]
	}
	m.window[m.index] = v
	m.sum += v
	m.index = (m.index + 1) % len(m.window)
}

// Average returns the mean of the samples held, or 0 when empty.
func (m *MovingAverage[T]) Average() float64 {
	if m.count == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.count)
}

// Len returns the number of samples held.
func (m *MovingAverage[T]) Len() int {
	return m.count
}
