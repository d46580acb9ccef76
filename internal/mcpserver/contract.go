package mcpserver

// QuerySyntax documents the input language accepted by find_paths.
const QuerySyntax = `# Sowilo Query Syntax

A query is a single input line. The text after the last "/" is the pattern;
everything before it, including the "/", is the search directory.

| Input             | Directory  | Pattern | Mode      |
|-------------------|------------|---------|-----------|
| ` + "`foo`" + `             | root       | foo     | flat      |
| ` + "`src/ma`" + `          | src/       | ma      | flat      |
| ` + "`src/ util`" + `       | src/       | util    | recursive |
| ` + "` util`" + `           | root       | util    | recursive |
| ` + "`/etc/host`" + `       | /etc/      | host    | flat      |

## Rules

1. **Flat** searches list only the immediate children of the directory.
2. **Recursive** searches start with a space after the directory
   ("dir/ pattern", or a leading space for the root). Hidden entries and
   excluded directories such as .git are skipped.
3. A leading "/" makes the directory absolute; otherwise it is relative to
   the configured root (the home directory by default).
4. Directories are listed with a trailing "/" and rank above files with the
   same match quality. Shallower paths rank above deeper ones.
5. An empty pattern lists everything in the directory (up to 100 items).

## Pattern atoms

Whitespace separates atoms; every atom must match.

- ` + "`abc`" + `    fuzzy match
- ` + "`'abc`" + `   exact substring
- ` + "`^abc`" + `   prefix
- ` + "`abc$`" + `   suffix
- ` + "`^abc$`" + `  whole path
- ` + "`!abc`" + `   must not contain
- ` + "`\\ `" + `     literal space

Matching is case-insensitive unless the atom contains an uppercase letter,
and ignores diacritics unless the atom contains one.

## Actions

Every item carries three actions, usable with apply_action:

- **complete**: replace the input with the item's directory.
- **activate**: open the item with the system opener.
- **parent_dir**: search the parent directory recursively with the same pattern.
`
