package mcpserver

// NoteFormat describes the layout of notes written by the ingestion
// pipeline, so clients know which front-matter keys to expect.
const NoteFormat = `# tgvault Note Format

Every note is produced from one Telegram message and stored as
` + "`<YYYYMMDD-HHMMSS>-<slug>.md`" + ` at the root of the vault. Downloaded media
lives under ` + "`assets/`" + `.

## Front-matter

Keys appear in this order; every value is a double-quoted string or a
bracketed list of double-quoted strings.

| key            | meaning                                        |
|----------------|------------------------------------------------|
| source-type    | always "telegram"                              |
| platform       | always "telegram"                              |
| channel        | chat the message came from                     |
| author         | sender display name                            |
| date           | message time, RFC 3339 UTC                     |
| original-url   | first URL in the message, or ""                |
| media-image    | list of asset paths, e.g. ["assets/x.jpg"]     |
| topic          | title (first non-empty line, max 120 chars)    |
| tags           | hashtags without "#", in message order         |

## Body

1. ` + "`# <title>`" + `
2. one ` + "`![](assets/...)`" + ` line per asset
3. ` + "`## Description`" + ` with the message text verbatim
4. ` + "`## Source`" + ` (channel, author, link)
5. ` + "`## Summary`" + ` (title, tags, links; "none" when empty)

Notes are read-only through this server. Edit files on disk if needed;
the catalogue follows changes automatically.
`
