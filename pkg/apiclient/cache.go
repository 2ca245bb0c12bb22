package apiclient

import "sync"

// cache はクライアント側のローカルキャッシュ
// サーバー応答に含まれる更新後カウントで、再フェッチなしに表示を整合させる
type cache struct {
	mu sync.RWMutex

	events map[string]*Event

	// 自分の参加登録一覧（キャッシュ済みの場合のみ非nil）
	myRegistrations []*Registration
	hasMyList       bool

	// イベント一覧はカウント以外も変わりうるため、登録後はstale扱いで再取得させる
	listStale bool
}

func newCache() *cache {
	return &cache{events: make(map[string]*Event)}
}

func (c *cache) getEvent(id string) (*Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[id]
	return e, ok
}

func (c *cache) putEvent(e *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[e.ID] = e
}

// patchEvent はキャッシュ済みエントリだけを更新する
// 未キャッシュのイベントは黙ってスキップする（次回取得で最新が入る）
func (c *cache) patchEvent(updated *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[updated.ID]; !ok {
		return
	}
	c.events[updated.ID] = updated
}

func (c *cache) getMyRegistrations() ([]*Registration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasMyList {
		return nil, false
	}
	return c.myRegistrations, true
}

func (c *cache) setMyRegistrations(regs []*Registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.myRegistrations = regs
	c.hasMyList = true
}

// prependMyRegistration は新しい登録を一覧の先頭に追加する
// 一覧が未キャッシュなら何もしない
func (c *cache) prependMyRegistration(reg *Registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasMyList {
		return
	}
	c.myRegistrations = append([]*Registration{reg}, c.myRegistrations...)
}

// removeMyRegistration はキャンセルした登録を一覧から除く
func (c *cache) removeMyRegistration(registrationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasMyList {
		return
	}
	filtered := c.myRegistrations[:0]
	for _, r := range c.myRegistrations {
		if r.ID != registrationID {
			filtered = append(filtered, r)
		}
	}
	c.myRegistrations = filtered
}

func (c *cache) markListStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listStale = true
}

func (c *cache) isListStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listStale
}

func (c *cache) clearListStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listStale = false
}

func (c *cache) invalidateEvent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, id)
}
