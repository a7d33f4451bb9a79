package time

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	tplog "github.com/TopiaNetwork/aggregation/log"
)

type TimerFunc func()

type TimerType byte

const (
	TimerType_Unknown TimerType = iota
	TimerType_OneTime
	TimerType_Periodic
)

type TimerStatus int32

const (
	TimerStatus_Unknown TimerStatus = iota
	TimerStatus_Stopped
	TimerStatus_Running
)

const DefaultResolution = 100 * time.Millisecond

// TimerManager drives every registered routine from one ticker. Intervals are rounded up to whole
// ticks of the manager's resolution.
type TimerManager interface {
	RegisterPeriodicTimer(name string, routine TimerFunc, interval time.Duration)

	RegisterOneTimeRoutine(name string, routine TimerFunc, delay time.Duration)

	RemoveTimer(name string)

	ClearTimers()

	StartTimer(name string, triggerNextTicker bool)

	StopTimer(name string)

	Stop()
}

type timerRoutine struct {
	id              string
	handler         TimerFunc
	interval        uint64
	lastTicker      uint64
	status          TimerStatus
	triggerNextTick int32
	rType           TimerType
}

type timerManager struct {
	log        tplog.Logger
	id         string
	resolution time.Duration
	ticker     uint64
	timers     sync.Map // key: string, value: *timerRoutine
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewTimerManager(log tplog.Logger, id string, resolution time.Duration) TimerManager {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	m := &timerManager{
		log:        log,
		id:         id,
		resolution: resolution,
		quit:       make(chan struct{}),
	}

	go m.routine()

	return m
}

func (m *timerManager) ticks(d time.Duration) uint64 {
	n := uint64((d + m.resolution - 1) / m.resolution)
	if n == 0 {
		n = 1
	}
	return n
}

func (m *timerManager) currentTicker() uint64 {
	return atomic.LoadUint64(&m.ticker)
}

func (m *timerManager) addTimer(name string, tr *timerRoutine) {
	m.timers.Store(name, tr)
}

func (m *timerManager) getTimer(name string) *timerRoutine {
	if v, ok := m.timers.Load(name); ok {
		return v.(*timerRoutine)
	}
	return nil
}

func (m *timerManager) trigger(routine *timerRoutine) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("Timer %s routine %s panic: %v", m.id, routine.id, r)
			m.log.Error(string(debug.Stack()))
		}
	}()

	routine.handler()
}

func (m *timerManager) due(rt *timerRoutine, t uint64) bool {
	if atomic.CompareAndSwapInt32(&rt.triggerNextTick, 1, 0) {
		return true
	}

	return TimerStatus(atomic.LoadInt32((*int32)(&rt.status))) == TimerStatus_Running &&
		t-atomic.LoadUint64(&rt.lastTicker) >= rt.interval
}

func (m *timerManager) routine() {
	timer := time.NewTicker(m.resolution)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t := atomic.AddUint64(&m.ticker, 1)
			m.timers.Range(func(key, value interface{}) bool {
				rt := value.(*timerRoutine)
				if !m.due(rt, t) {
					return true
				}

				atomic.StoreUint64(&rt.lastTicker, t)
				if rt.rType == TimerType_OneTime {
					m.timers.Delete(key)
				}
				go m.trigger(rt)

				return true
			})
		case <-m.quit:
			return
		}
	}
}

func (m *timerManager) RegisterPeriodicTimer(name string, routine TimerFunc, interval time.Duration) {
	if rt := m.getTimer(name); rt != nil {
		return
	}
	r := &timerRoutine{
		rType:      TimerType_Periodic,
		interval:   m.ticks(interval),
		handler:    routine,
		lastTicker: m.currentTicker(),
		id:         name,
		status:     TimerStatus_Stopped,
	}
	m.addTimer(name, r)
}

// RegisterOneTimeRoutine runs routine once after delay. Registering an existing name restarts its delay.
func (m *timerManager) RegisterOneTimeRoutine(name string, routine TimerFunc, delay time.Duration) {
	if rt := m.getTimer(name); rt != nil {
		atomic.StoreUint64(&rt.lastTicker, m.currentTicker())
		return
	}

	r := &timerRoutine{
		rType:      TimerType_OneTime,
		interval:   m.ticks(delay),
		handler:    routine,
		lastTicker: m.currentTicker(),
		id:         name,
		status:     TimerStatus_Running,
	}
	m.addTimer(name, r)
}

func (m *timerManager) RemoveTimer(name string) {
	m.timers.Delete(name)
}

func (m *timerManager) ClearTimers() {
	m.timers.Range(func(key, value interface{}) bool {
		m.timers.Delete(key)
		return true
	})
}

func (m *timerManager) StartTimer(name string, triggerNextTicker bool) {
	routine := m.getTimer(name)
	if routine == nil {
		return
	}
	if triggerNextTicker {
		atomic.CompareAndSwapInt32(&routine.triggerNextTick, 0, 1)
	}
	atomic.StoreUint64(&routine.lastTicker, m.currentTicker())
	atomic.CompareAndSwapInt32((*int32)(&routine.status), int32(TimerStatus_Stopped), int32(TimerStatus_Running))
}

func (m *timerManager) StopTimer(name string) {
	routine := m.getTimer(name)
	if routine == nil {
		return
	}

	atomic.CompareAndSwapInt32((*int32)(&routine.status), int32(TimerStatus_Running), int32(TimerStatus_Stopped))
}

func (m *timerManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		m.ClearTimers()
	})
}
