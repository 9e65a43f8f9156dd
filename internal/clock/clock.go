// Package clock — инжектируемый источник времени.
//
// Вся логика планирования читает время через Clock, а не через
// time.Now напрямую: поведение drift и recovery проверяется
// в тестах детерминированно, через Fake.
package clock

import (
	"sync"
	"time"
)

// Clock — источник времени для компонентов планировщика.
type Clock interface {
	// Now возвращает текущее время.
	Now() time.Time

	// After возвращает канал, который сработает через d.
	After(d time.Duration) <-chan time.Time
}

// Real — системные часы.
type Real struct{}

// New возвращает системные часы.
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Fake — управляемые часы для тестов.
//
// Время стоит на месте, пока тест не вызовет Advance или Set.
// Ожидающие After каналы срабатывают, когда время проходит их дедлайн.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake создаёт Fake с заданным стартовым временем.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := f.now.Add(d)
	if d <= 0 {
		ch <- f.now
		return ch
	}

	f.waiters = append(f.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// Advance сдвигает время вперёд и будит подошедшие After.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLocked(f.now.Add(d))
}

// Set устанавливает время в t. Назад время не переводится.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.After(f.now) {
		f.setLocked(t)
	}
}

func (f *Fake) setLocked(t time.Time) {
	f.now = t

	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.deadline.After(t) {
			w.ch <- t
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
}
