package bot

// The reconciliation engine's outbound side, carried over the live client.
// girc's writer preserves submission order, which is all the engine needs.

func (b *Bot) Mode(channelName string, add bool, mode byte, target string) {
	sign := "+"
	if !add {
		sign = "-"
	}
	if cmd := b.cmd(); cmd != nil {
		cmd.Mode(channelName, sign+string(mode), target)
	}
}

func (b *Bot) Join(channelName string) {
	if cmd := b.cmd(); cmd != nil {
		cmd.Join(channelName)
	}
	// the client's own membership is mirrored like anyone else's
	b.Live.GetOrCreate(channelName).Join(b.cfg.Nick)
}

func (b *Bot) Ban(channelName, mask string) {
	if cmd := b.cmd(); cmd != nil {
		cmd.Mode(channelName, "+b", mask)
	}
}

func (b *Bot) UnsetException(channelName, mask string) {
	if cmd := b.cmd(); cmd != nil {
		cmd.Mode(channelName, "-e", mask)
	}
}

func (b *Bot) Kick(channelName, nick, reason string) {
	if cmd := b.cmd(); cmd != nil {
		cmd.Kick(channelName, nick, reason)
	}
}
