// Package plugin runs user-supplied Lua scanners alongside the built-in
// inline scanner.
//
// A plugin is a Lua script that defines a global scan_line function. The
// function receives the scannable text of one line and returns a list of
// tables, each describing one span:
//
//	function scan_line(text)
//	    local out = {}
//	    for s, e in text:gmatch("()TODO()") do
//	        table.insert(out, livemark.token{from = s, to = e - 1, class = "todo"})
//	    end
//	    return out
//	end
//
// Positions are 1-based and inclusive, as Lua strings are. A span with
// hide = true is hidden instead of styled.
//
// Scripts run in a restricted state: only the base, string, table and math
// libraries are opened, file loading functions are removed, and every call
// runs under a timeout. A script that keeps failing is disabled.
package plugin
