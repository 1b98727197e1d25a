// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package multireader

import "github.com/biogo/store/llrb"

// cacheEntry adapts a MergeItem to llrb.Comparable under a given
// Ordering.
type cacheEntry struct {
	item  *MergeItem
	order Ordering
}

func (e *cacheEntry) Compare(c llrb.Comparable) int {
	o := c.(*cacheEntry)
	if e.order.Less(e.item, o.item) {
		return -1
	}
	if e.order.Less(o.item, e.item) {
		return 1
	}
	return 0
}

// MergeCache holds the merge frontier: at most one pending MergeItem per
// open source, ordered by the active Ordering. It is backed by a
// left-leaning red-black tree so that PopMin and Remove are both
// logarithmic in the number of open sources.
type MergeCache struct {
	order    Ordering
	tree     llrb.Tree
	bySource map[int]*cacheEntry
}

// NewMergeCache returns an empty MergeCache that compares items using
// order.
func NewMergeCache(order Ordering) *MergeCache {
	return &MergeCache{order: order, bySource: make(map[int]*cacheEntry)}
}

// Reorder rebuilds the cache under a new Ordering, preserving its
// current contents. MultiReader does not call it; the ordering it
// selects at Open is kept for its lifetime.
func (c *MergeCache) Reorder(order Ordering) {
	items := make([]*MergeItem, 0, c.tree.Len())
	c.tree.Do(func(v llrb.Comparable) (done bool) {
		items = append(items, v.(*cacheEntry).item)
		return false
	})
	c.order = order
	c.tree = llrb.Tree{}
	c.bySource = make(map[int]*cacheEntry)
	for _, it := range items {
		c.Insert(it)
	}
}

// Insert adds item to the cache under the active ordering. It is the
// caller's responsibility to ensure at most one item per sourceID is
// ever live in the cache at a time.
func (c *MergeCache) Insert(item *MergeItem) {
	e := &cacheEntry{item: item, order: c.order}
	c.tree.Insert(e)
	c.bySource[item.sourceID] = e
}

// PopMin removes and returns the least item under the active ordering,
// or nil if the cache is empty.
func (c *MergeCache) PopMin() *MergeItem {
	v := c.tree.DeleteMin()
	if v == nil {
		return nil
	}
	e := v.(*cacheEntry)
	delete(c.bySource, e.item.sourceID)
	return e.item
}

// Remove deletes the pending item for sourceID, if any. It is used when
// a source is closed and must be dropped from the merge frontier.
func (c *MergeCache) Remove(sourceID int) {
	e, ok := c.bySource[sourceID]
	if !ok {
		return
	}
	c.tree.Delete(e)
	delete(c.bySource, sourceID)
}

// Clear empties the cache.
func (c *MergeCache) Clear() {
	c.tree = llrb.Tree{}
	c.bySource = make(map[int]*cacheEntry)
}

// Has reports whether sourceID currently has a pending item in the
// cache.
func (c *MergeCache) Has(sourceID int) bool {
	_, ok := c.bySource[sourceID]
	return ok
}

// IsEmpty reports whether the cache holds no pending items.
func (c *MergeCache) IsEmpty() bool { return c.tree.Len() == 0 }

// Size returns the number of pending items in the cache.
func (c *MergeCache) Size() int { return c.tree.Len() }
