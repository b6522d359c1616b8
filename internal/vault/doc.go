// Package vault resolves embeds against a folder of markdown notes.
//
// A Vault indexes every note under its root by relative path, base name,
// title and frontmatter aliases, and serves embed requests from that index:
//
//	v, err := vault.Open(ctx, "/home/me/notes")
//	if err != nil {
//		return err
//	}
//	res, _ := v.ResolveEmbed(ctx, resolve.EmbedRequest{Target: "alpha", Section: "Goals", Depth: 1})
//
// Media targets (images, audio, video, pdf) are matched against files in the
// vault by relative path or base name. Watch keeps the index current and
// publishes a note.saved event for every note written on disk.
package vault
