package svg

// FindGroup 深度优先查找第一个 id 或 Inkscape 标签命中 aliases 的组。
// 未找到时返回 nil。
func (d *Document) FindGroup(aliases ...string) *Group {
	if len(aliases) == 0 {
		return nil
	}
	want := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		want[a] = true
	}
	return findGroup(d.Nodes, want)
}

func findGroup(nodes []Node, want map[string]bool) *Group {
	for _, n := range nodes {
		g, ok := n.(*Group)
		if !ok {
			continue
		}
		if g.matches(want) {
			return g
		}
		if found := findGroup(g.Children, want); found != nil {
			return found
		}
	}
	return nil
}

func (g *Group) matches(want map[string]bool) bool {
	return (g.ID != "" && want[g.ID]) || (g.Label != "" && want[g.Label])
}

// Flatten 按文档顺序返回所有后代 Item。
func (g *Group) Flatten() []*Item {
	var items []*Item
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch v := n.(type) {
			case *Item:
				items = append(items, v)
			case *Group:
				walk(v.Children)
			}
		}
	}
	walk(g.Children)
	return items
}

// Deduplicate 去掉元素与之前某项结构相同的 Item，保留首次出现的顺序。
func Deduplicate(items []*Item) []*Item {
	seen := make(map[StructuralKey]bool, len(items))
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		k := it.Elem.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}
