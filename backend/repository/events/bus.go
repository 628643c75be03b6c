package events

import "sync"

// Handler 事件处理器
type Handler func(event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus 事件总线
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType][]subscription
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe 订阅指定类型的事件，返回取消订阅函数（可重复调用）
func (b *Bus) Subscribe(eventType EventType, handler Handler) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, id) })
	}
}

// SubscribeAll 订阅所有事件
func (b *Bus) SubscribeAll(handler Handler) (cancel func()) {
	return b.Subscribe(EventAll, handler)
}

func (b *Bus) remove(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			// 复制一份，避免影响 Publish 中已经拿到的切片
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, eventType)
			} else {
				b.handlers[eventType] = next
			}
			return
		}
	}
}

func (b *Bus) snapshot(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// 复制处理器列表，避免在锁内执行用户代码
	handlers := make([]Handler, 0, len(b.handlers[eventType])+len(b.handlers[EventAll]))
	for _, s := range b.handlers[eventType] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.handlers[EventAll] {
		handlers = append(handlers, s.handler)
	}
	return handlers
}

// Publish 发布事件（异步执行所有处理器）
func (b *Bus) Publish(event Event) {
	for _, h := range b.snapshot(event.Type()) {
		go h(event)
	}
}

// PublishSync 发布事件（同步执行所有处理器）
func (b *Bus) PublishSync(event Event) {
	for _, h := range b.snapshot(event.Type()) {
		h(event)
	}
}

// HasSubscribers 检查是否有订阅者
func (b *Bus) HasSubscribers(eventType EventType) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) > 0 || len(b.handlers[EventAll]) > 0
}

// Clear 清除所有订阅
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]subscription)
}
