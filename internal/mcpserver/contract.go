package mcpserver

// NoteFormatContract describes how a job description note must be written
// for its skills to be counted.
const NoteFormatContract = `# Job Note Format

Each job description is one Markdown file in the notes directory.

## Structure

` + "```" + `markdown
---
title: Data Engineer @ Acme         # OPTIONAL
tags:                               # OPTIONAL – YAML list, matched exactly
  - jobs
---

Body text. Every required skill is a wikilink: [[Python]], [[SQL]].
Use [[target|alias]] when the display text differs; the target is counted.
` + "```" + `

## Rules

1. The header starts at the first non-blank line with ` + "`" + `---` + "`" + ` and ends at the
   next ` + "`" + `---` + "`" + ` line. A header that is never closed is treated as body text.
2. A note with a tags list is counted only when it contains ` + "`" + `jobs` + "`" + ` and not
   ` + "`" + `reject` + "`" + `. Tag matching is case-sensitive.
3. A note without a header, or with a header but no tags field, is counted.
4. A skill scores one point per note, however often it is linked.
5. ` + "`" + `[[Mapping job descriptions]]` + "`" + ` and ` + "`" + `[[Data Engineering]]` + "`" + ` are never counted,
   and the index note ` + "`" + `Mapping job descriptions.md` + "`" + ` is skipped.
6. After a scan each note with a header gains the ` + "`" + `processed` + "`" + ` tag and is not
   read again. Notes without a header are never modified, so they are
   counted on every scan unless ledger tracking is enabled.

## Example

` + "```" + `markdown
---
title: Analytics Engineer @ Globex
tags:
  - jobs
  - remote
---

Stack: [[dbt]], [[SQL]], [[Airflow]] and some [[Python|python scripting]].
Part of [[Data Engineering]] (not counted).
` + "```" + `
`
