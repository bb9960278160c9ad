package catalogs

import (
	"fmt"
	"sort"

	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/advancement"
	"voxelcraft.ai/advancements/internal/sim/criteria"
)

var frames = map[string]protocol.AdvancementFrame{
	"task":      protocol.FrameTask,
	"goal":      protocol.FrameGoal,
	"challenge": protocol.FrameChallenge,
}

// Install registers every catalog advancement and builds one tree per file.
// Parents may live in other files; registration follows parent order.
func (c *Catalogs) Install(reg *advancement.Registry) error {
	type pending struct {
		tree int
		def  AdvancementDef
	}
	var queue []pending
	for i, td := range c.Advancements.Trees {
		for _, a := range td.Advancements {
			queue = append(queue, pending{tree: i, def: a})
		}
	}

	for len(queue) > 0 {
		var next []pending
		for _, p := range queue {
			if p.def.Parent != "" {
				if _, ok := reg.Get(p.def.Parent); !ok {
					next = append(next, p)
					continue
				}
			}
			def, err := c.buildDef(p.def)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Advancements.Trees[p.tree].File, err)
			}
			if _, err := reg.Register(def); err != nil {
				return fmt.Errorf("%s: %w", c.Advancements.Trees[p.tree].File, err)
			}
		}
		if len(next) == len(queue) {
			p := next[0]
			return fmt.Errorf("%s: %s: %w %q", c.Advancements.Trees[p.tree].File, p.def.Key, advancement.ErrUnknownParent, p.def.Parent)
		}
		queue = next
	}

	for _, td := range c.Advancements.Trees {
		icon, err := c.slot(td.Root.Icon)
		if err != nil {
			return fmt.Errorf("%s: root: %w", td.File, err)
		}
		tree, err := reg.NewTree(td.Key, advancement.RootDisplay{
			Title:       td.Root.Title,
			Description: td.Root.Description,
			Icon:        icon,
			Background:  td.Root.Background,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", td.File, err)
		}
		for _, ad := range td.Advancements {
			a, _ := reg.Get(ad.Key)
			if err := tree.Add(ad.X, ad.Y, a); err != nil {
				return fmt.Errorf("%s: %w", td.File, err)
			}
		}
	}
	return nil
}

func (c *Catalogs) buildDef(ad AdvancementDef) (advancement.Def, error) {
	def := advancement.Def{Key: ad.Key, Parent: ad.Parent}

	leaves := map[string]criteria.Criterion{}
	names := make([]string, 0, len(ad.Criteria))
	for name, cd := range ad.Criteria {
		var leaf criteria.Criterion
		if cd.Goal > 1 {
			leaf = criteria.Scored(name, cd.Goal)
		} else {
			leaf = criteria.Leaf(name)
		}
		if cd.Trigger != "" {
			leaf = leaf.WithTrigger(cd.Trigger, cd.Conditions)
		}
		leaves[name] = leaf
		names = append(names, name)
	}
	sort.Strings(names)

	switch {
	case len(names) == 0:
		def.Criterion = criteria.Empty
	case len(ad.Requirements) == 0:
		all := make([]criteria.Criterion, 0, len(names))
		for _, n := range names {
			all = append(all, leaves[n])
		}
		def.Criterion = criteria.And(all...)
	default:
		groups := make([]criteria.Criterion, 0, len(ad.Requirements))
		for _, g := range ad.Requirements {
			and := make([]criteria.Criterion, 0, len(g))
			for _, n := range g {
				leaf, ok := leaves[n]
				if !ok {
					return def, fmt.Errorf("%s: unknown criterion %q", ad.Key, n)
				}
				and = append(and, leaf)
			}
			groups = append(groups, criteria.And(and...))
		}
		def.Criterion = criteria.Or(groups...)
	}

	if d := ad.Display; d != nil {
		icon, err := c.slot(d.Icon)
		if err != nil {
			return def, fmt.Errorf("%s: %w", ad.Key, err)
		}
		frame, ok := frames[d.Frame]
		if !ok {
			return def, fmt.Errorf("%s: bad frame %q", ad.Key, d.Frame)
		}
		def.Display = &advancement.Display{
			Title:          d.Title,
			Description:    d.Description,
			Icon:           icon,
			Frame:          frame,
			Background:     d.Background,
			ShowToast:      d.ShowToast,
			AnnounceToChat: d.AnnounceToChat,
			Hidden:         d.Hidden,
		}
	}
	return def, nil
}

func (c *Catalogs) slot(item string) (protocol.Slot, error) {
	if _, ok := c.Items.Defs[item]; !ok {
		return protocol.Slot{}, fmt.Errorf("unknown icon item %q", item)
	}
	return protocol.Slot{Item: item, Count: 1}, nil
}
