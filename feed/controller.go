// Package feed owns the ordered item list, the current position and navigation. It decides the
// load mode of every item and drives one playback session per loaded item.
package feed

import (
	"math"

	"github.com/reels-cli/reels/log"
	"github.com/reels-cli/reels/loop"
	"github.com/reels-cli/reels/media"
	"github.com/reels-cli/reels/network"
	"github.com/reels-cli/reels/session"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Session is the part of a playback session the controller drives.
type Session interface {
	Update(props session.Props)
	Gesture()
	Position() (offset, duration float64)
	State() session.State
	Destroy()
}

// Location receives every navigation commit.
type Location interface {
	Commit(id string)
}

type Options struct {
	Loop loop.Loop

	// NewSession builds the session of an item entering the load window.
	NewSession func(reporter session.Reporter) Session

	// Monitor, when set, feeds network quality changes to the sessions.
	Monitor *network.Monitor

	Location Location
}

// Snapshot is the view state of the whole feed.
type Snapshot struct {
	Items     []ItemView
	Current   int
	Direction media.Direction
	Paused    bool
	Quality   network.Quality
	// Offset is the scroll offset in viewport heights.
	Offset    float64
	Scrolling bool
}

// ItemView is the view state of one item.
type ItemView struct {
	Item    media.Item
	Mode    media.LoadMode
	Session mo.Option[session.State]
	Saved   float64
}

// Active returns the view of the current item.
func (s Snapshot) Active() (ItemView, bool) {
	if s.Current < 0 || s.Current >= len(s.Items) {
		return ItemView{}, false
	}
	return s.Items[s.Current], true
}

// Controller is the feed controller. All methods must be called on its loop.
type Controller struct {
	loop       loop.Loop
	newSession func(reporter session.Reporter) Session
	location   Location

	items     []media.Item
	current   int
	direction media.Direction
	paused    bool
	positions *Positions
	quality   network.Quality
	sessions  map[string]Session

	viewport  float64
	offset    float64
	scrolling bool
	debounce  loop.Timer
	settle    loop.Timer

	subscribers map[int]func(Snapshot)
	nextID      int
	dirty       bool
	closed      bool

	unwatch func()
}

func New(opts Options) *Controller {
	c := &Controller{
		loop:        opts.Loop,
		newSession:  opts.NewSession,
		location:    opts.Location,
		positions:   NewPositions(),
		quality:     network.Quality{Tier: network.High, Downlink: 10, EffectiveType: "4g"},
		sessions:    make(map[string]Session),
		viewport:    1,
		subscribers: make(map[int]func(Snapshot)),
	}

	if opts.Monitor != nil {
		c.quality = opts.Monitor.Current()
		c.unwatch = opts.Monitor.Subscribe(func(q network.Quality) {
			c.loop.Post(func() { c.SetQuality(q) })
		})
	}
	return c
}

// Start loads items with index as the current one. An out of range index starts at 0.
func (c *Controller) Start(items []media.Item, index int) {
	c.items = items
	if index < 0 || index >= len(items) {
		index = 0
	}
	c.current = index
	c.direction = media.Forward
	c.paused = false
	c.offset = float64(index) * c.viewport

	log.Infof("feed started with %d items at #%s", len(items), c.currentID())
	c.render()
}

func (c *Controller) Items() []media.Item {
	return c.items
}

// Current is the index of the active item.
func (c *Controller) Current() int {
	return c.current
}

func (c *Controller) Positions() *Positions {
	return c.positions
}

// NavigateTo makes index the current item. Out of range indexes are ignored.
func (c *Controller) NavigateTo(index int, direction media.Direction) {
	if c.closed || index < 0 || index >= len(c.items) {
		return
	}

	c.flush()

	c.current = index
	c.direction = direction
	c.paused = false
	c.offset = float64(index) * c.viewport

	id := c.items[index].ID
	if c.location != nil {
		c.location.Commit(id)
	}

	log.Infof("%s to #%s (index %d)", direction, id, index)
	c.render()
}

// NavigateID navigates to the item with id, if there is one.
func (c *Controller) NavigateID(id string) bool {
	_, index, ok := lo.FindIndexOf(c.items, func(item media.Item) bool {
		return item.ID == id
	})
	if !ok {
		return false
	}
	c.ScrollToIndex(index)
	return true
}

func (c *Controller) NavigateUp() {
	c.ScrollToIndex(c.current - 1)
}

func (c *Controller) NavigateDown() {
	c.ScrollToIndex(c.current + 1)
}

// ScrollToIndex scrolls to index and commits the navigation once the scroll had time to settle.
// Organic scroll events are ignored meanwhile.
func (c *Controller) ScrollToIndex(index int) {
	if c.closed || index < 0 || index >= len(c.items) {
		return
	}

	direction := media.DirectionOf(c.current, index)
	c.flush()

	c.scrolling = true
	c.offset = float64(index) * c.viewport
	stop(c.debounce)
	stop(c.settle)

	c.settle = c.loop.AfterFunc(ScrollSettle, func() {
		c.settle = nil
		c.scrolling = false
		c.NavigateTo(index, direction)
	})
	c.notify()
}

// OnScroll takes a raw scroll offset. Bursts of offsets settle into one navigation.
func (c *Controller) OnScroll(offset float64) {
	if c.closed || c.scrolling || len(c.items) == 0 {
		return
	}

	limit := float64(len(c.items)-1) * c.viewport
	c.offset = math.Max(0, math.Min(offset, limit))
	c.flush()

	stop(c.debounce)
	c.debounce = c.loop.AfterFunc(ScrollDebounce, func() {
		c.debounce = nil
		c.settleScroll()
	})
	c.notify()
}

// ScrollBy moves the scroll offset by delta viewport heights.
func (c *Controller) ScrollBy(delta float64) {
	c.OnScroll(c.offset + delta*c.viewport)
}

func (c *Controller) settleScroll() {
	index := int(math.Round(c.offset / c.viewport))
	if index == c.current || index < 0 || index >= len(c.items) {
		c.offset = float64(c.current) * c.viewport
		c.notify()
		return
	}
	c.NavigateTo(index, media.DirectionOf(c.current, index))
}

// Offset is the current scroll offset.
func (c *Controller) Offset() float64 {
	return c.offset
}

// SetViewport changes the height scroll offsets are measured in.
func (c *Controller) SetViewport(height float64) {
	if height <= 0 {
		return
	}
	c.viewport = height
	c.offset = float64(c.current) * height
	c.notify()
}

// TogglePlayPause flips the user pause. Unpausing counts as a gesture for the active item.
// While the active item's autoplay is blocked the press is that gesture and plays it instead.
func (c *Controller) TogglePlayPause() {
	if c.closed {
		return
	}

	s, ok := c.sessions[c.currentID()]
	if ok && !c.paused && s.State().AutoplayBlocked {
		log.Infof("[%s] playing on request after a blocked autoplay", c.currentID())
		s.Gesture()
		c.render()
		return
	}

	c.paused = !c.paused
	if !c.paused && ok {
		s.Gesture()
	}
	c.render()
}

func (c *Controller) Paused() bool {
	return c.paused
}

// SetQuality hands a new network quality to every session.
func (c *Controller) SetQuality(q network.Quality) {
	if c.closed {
		return
	}
	if q.Tier != c.quality.Tier {
		log.Infof("network tier %s -> %s", c.quality.Tier, q.Tier)
	}
	c.quality = q
	c.render()
}

// ReportPosition is the only way sessions write to the saved position map.
func (c *Controller) ReportPosition(id string, offset, duration float64) {
	if c.positions.Record(id, offset, duration) {
		log.Debugf("[%s] position saved at %s", id, media.FormatTime(offset))
	}
	c.notify()
}

func (c *Controller) SessionChanged(string) {
	c.notify()
}

// Snapshot returns the view state of the feed.
func (c *Controller) Snapshot() Snapshot {
	items := lo.Map(c.items, func(item media.Item, i int) ItemView {
		view := ItemView{
			Item:  item,
			Mode:  ModeOf(i, c.current, len(c.items)),
			Saved: c.positions.Offset(item.ID),
		}
		if s, ok := c.sessions[item.ID]; ok {
			view.Session = mo.Some(s.State())
		}
		return view
	})

	return Snapshot{
		Items:     items,
		Current:   c.current,
		Direction: c.direction,
		Paused:    c.paused,
		Quality:   c.quality,
		Offset:    c.offset / c.viewport,
		Scrolling: c.scrolling,
	}
}

// Subscribe registers fn for snapshots. Bursts of changes are coalesced into one call on the loop.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn

	return func() {
		delete(c.subscribers, id)
	}
}

// Close destroys every session. The controller is unusable afterwards.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true

	stop(c.debounce)
	stop(c.settle)
	if c.unwatch != nil {
		c.unwatch()
	}

	for id, s := range c.sessions {
		s.Destroy()
		delete(c.sessions, id)
	}
	c.subscribers = make(map[int]func(Snapshot))
}

func (c *Controller) currentID() string {
	if c.current < 0 || c.current >= len(c.items) {
		return ""
	}
	return c.items[c.current].ID
}

// flush saves the live offset of the current item.
func (c *Controller) flush() {
	s, ok := c.sessions[c.currentID()]
	if !ok {
		return
	}
	if offset, duration := s.Position(); offset > 0 {
		c.positions.Record(c.currentID(), offset, duration)
	}
}

// render pushes props to every item. Items leaving the load window lose their session, and
// the outgoing active item is updated before the incoming one.
func (c *Controller) render() {
	n := len(c.items)

	for i, item := range c.items {
		if i != c.current {
			c.renderItem(i, item, n)
		}
	}
	if c.current < n {
		c.renderItem(c.current, c.items[c.current], n)
	}

	c.notify()
}

func (c *Controller) renderItem(i int, item media.Item, n int) {
	mode := ModeOf(i, c.current, n)
	s, ok := c.sessions[item.ID]

	if mode == media.None {
		if ok {
			s.Destroy()
			delete(c.sessions, item.ID)
		}
		return
	}

	if !ok {
		s = c.newSession(c)
		c.sessions[item.ID] = s
	}

	s.Update(session.Props{
		Item:      item,
		Mode:      mode,
		Active:    i == c.current,
		Paused:    c.paused,
		Direction: c.direction,
		Saved:     c.positions.Offset(item.ID),
		Tier:      c.quality.Tier,
	})
}

func (c *Controller) notify() {
	if c.dirty || c.closed {
		return
	}
	c.dirty = true

	c.loop.Post(func() {
		c.dirty = false
		if c.closed || len(c.subscribers) == 0 {
			return
		}

		snapshot := c.Snapshot()
		for _, fn := range c.subscribers {
			fn(snapshot)
		}
	})
}

func stop(t loop.Timer) {
	if t != nil {
		t.Stop()
	}
}
