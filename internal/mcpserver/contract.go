package mcpserver

// SidecarFormatContract describes the canonical model.json sidecar format
// that LLM consumers should follow when interpreting or producing model
// metadata.
const SidecarFormatContract = `# Printdeck Sidecar Format Contract

Every model folder in the library carries a ` + "`model.json`" + ` sidecar. It is the
single source of truth for that model's metadata.

## Structure

` + "```" + `json
{
  "name": "Benchy Boat",
  "model_files": ["benchy.stl"],
  "gcodes": [
    {
      "file": "benchy_1h30m_PLA_Red.gcode",
      "material": "PLA",
      "colour": "Red",
      "print_time": "1h 30m"
    }
  ],
  "preview_image": "benchy.png",
  "print_time": "1h 30m",
  "active": false,
  "active_gcode_files": [],
  "last_modified": "2025-01-20T14:30:00Z",
  "time_created": "2025-01-15T09:00:00Z"
}
` + "```" + `

## Rules

1. **` + "`name`" + ` is required.** It is the display name everywhere; when absent
   the folder leaf is used instead.
2. **` + "`model_files`" + ` lists geometry files** (stl, 3mf, obj, step) relative to
   the model folder. Older sidecars may use a single ` + "`model_file`" + ` or
   ` + "`stl_file`" + ` key; ` + "`model_files`" + ` wins when both are present.
3. **` + "`gcodes`" + ` entries** reference G-code files in the model folder. Any of
   ` + "`material`" + `, ` + "`colour`" + `, ` + "`print_time`" + ` may be blank; blanks are filled
   from the file's slicer comments, then from the filename pattern
   ` + "`Name_1h30m_Material_Colour.gcode`" + `.
4. **Print times** are written as ` + "`<h>h <m>m`" + ` (e.g. ` + "`2h 5m`" + `, ` + "`45m`" + `).
5. **Timestamps** are UTC, second precision, ISO-8601 with a ` + "`Z`" + ` suffix.
6. **` + "`active`" + ` and ` + "`active_gcode_files`" + ` are managed by the server.** Do not
   set them directly; use the ` + "`set_model_active`" + ` tool. The file list records
   the names the model's G-codes carry inside the active directory, which may
   differ from the originals when collisions were renamed
   (` + "`part__OtherModel.gcode`" + `).
7. **File names are relative** to the model folder; no path separators, no
   traversal.

## Example workflow

1. ` + "`list_models`" + ` to see the library.
2. ` + "`get_model`" + ` to read one model's record.
3. ` + "`extract_gcode_metadata`" + ` to recover metadata from a raw G-code file.
4. ` + "`set_model_active`" + ` to stage the model's G-codes for printing.
`
