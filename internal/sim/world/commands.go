package world

import (
	"strings"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/sim/advancement"
)

const everything = "everything"

// handleCommand runs
//
//	/advancement grant|revoke <player> <advancement|everything> [criterion]
//
// for operators.
func (w *World) handleCommand(c *client, line string) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	usage := i18n.Translatable("commands.advancement.usage")
	if len(fields) == 0 || fields[0] != "advancement" {
		c.chat(usage)
		return
	}
	if !w.operators[c.name] {
		c.chat(i18n.Translatable("commands.advancement.denied").WithColor("red"))
		return
	}
	if len(fields) < 4 || len(fields) > 5 || (fields[1] != "grant" && fields[1] != "revoke") {
		c.chat(usage)
		return
	}
	grant := fields[1] == "grant"
	key := fields[3]
	criterion := ""
	if len(fields) == 5 {
		criterion = fields[4]
	}

	target, ok := w.reg.PlayerByName(fields[2])
	if !ok {
		c.chat(i18n.Translatable("commands.advancement.unknown_player", i18n.Plain(fields[2])))
		return
	}

	var advs []*advancement.Advancement
	switch {
	case key == everything && criterion != "":
		c.chat(usage)
		return
	case key == everything:
		advs = w.reg.All()
	default:
		a, ok := w.reg.Get(key)
		if !ok {
			c.chat(i18n.Translatable("commands.advancement.unknown", i18n.Plain(key)))
			return
		}
		if criterion != "" && !a.HasCriterion(criterion) {
			c.chat(i18n.Translatable("commands.advancement.unknown_criterion", i18n.Plain(key), i18n.Plain(criterion)))
			return
		}
		advs = []*advancement.Advancement{a}
	}

	w.actor, w.actorCriterion = c.name, criterion
	defer func() { w.actor, w.actorCriterion = "", "" }()
	for _, a := range advs {
		if grant {
			target.Grant(a, criterion)
		} else {
			target.Revoke(a, criterion)
		}
	}
	if grant {
		c.chat(i18n.Translatable("commands.advancement.grant.success", i18n.Plain(key), i18n.Plain(target.Name())))
	} else {
		c.chat(i18n.Translatable("commands.advancement.revoke.success", i18n.Plain(key), i18n.Plain(target.Name())))
	}
}
