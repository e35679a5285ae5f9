package mcpserver

// StoreLayout describes how a registry is kept on disk, for clients that want
// to interpret tool output or inspect a store directly.
const StoreLayout = `# Registry Store Layout

A registry lives in a hidden ` + "`__registry`" + ` directory next to the files it
tracks. Every directory below that parent belongs to the registry unless it
holds a registry of its own.

## Files

- ` + "`INDEXFILE`" + `: tab-separated table with the header ` + "`id\tfilename\trelpath`" + `.
  ` + "`relpath`" + ` is relative to the store directory, so it starts with ` + "`../`" + `.
- ` + "`METAFILE`" + `: YAML document with the registry's own ` + "`comments`" + `,
  ` + "`flags`" + ` and ` + "`groups`" + `.
- ` + "`<id>`" + `: one YAML document per tracked file with ` + "`comments`" + ` and ` + "`flags`" + `.

## Comments

Comments are a mapping keyed by a UTC timestamp
(` + "`2006-01-02T15:04:05.000000000Z`" + `). Each value holds ` + "`comment`" + ` and ` + "`user`" + `.
The key that sorts last is the latest comment.

## Flags and groups

Flags are plain labels. A group maps a label to a list of flags that always
includes ` + "`group:<label>`" + `; flagging a file with the label applies them all.

## Paths in tool output

Tool results report paths relative to the registry directory with forward
slashes, e.g. ` + "`docs/plan.md`" + `.
`
