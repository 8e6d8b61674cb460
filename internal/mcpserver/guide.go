package mcpserver

// SearchGuide explains how shortest-path answers should be read by LLM
// consumers of the find_shortest_path tool.
const SearchGuide = `# Sixthdegree Search Guide

Sixthdegree answers "how is person X connected to person Y" over a directed
relationship graph.

## Reading a result

` + "```" + `json
{
  "path": [{"id": 1, "name": "A"}, {"id": 2, "name": "B"}],
  "pathLength": 1,
  "nodesExplored": 2,
  "searchTimeMs": 0,
  "found": true
}
` + "```" + `

1. **Edges are directed.** A connection from A to B does not connect B to A.
   ` + "`" + `find_shortest_path(A, B)` + "`" + ` and ` + "`" + `find_shortest_path(B, A)` + "`" + ` can differ.
2. **pathLength counts edges**, so it is one less than the number of persons
   in ` + "`" + `path` + "`" + `. Searching a person against themselves gives 0.
3. **No connection** is reported as ` + "`" + `found: false` + "`" + `, an empty path and
   ` + "`" + `pathLength: -1` + "`" + `. This is an answer, not an error.
4. **nodesExplored** is how many persons the breadth-first search visited
   before stopping.
5. When several shortest paths exist, only one is returned.

## Freshness

Searches run on a cached snapshot of the graph. Persons or connections added
since the last load are not visible until ` + "`" + `reload_graph` + "`" + ` is called.
` + "`" + `graph_stats` + "`" + ` reads live counts from the store and reports whether a
snapshot is loaded.

## Names

Person names are matched exactly, including case. Use ` + "`" + `list_persons` + "`" + `
to find the spelling the store uses.
`
