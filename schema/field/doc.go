// Package field defines the typed model for IceType field definitions.
//
// A field definition is compiled from a compact type expression:
//
//	id:        "uuid!# = uuid()"     // required, unique, default uuid()
//	name:      "string"              // required by default
//	nickname:  "string?"             // optional
//	price:     "decimal(10,2)"       // precision/scale parameters
//	code:      "varchar(32)#"        // length parameter, unique
//	tags:      "string[]"            // array of strings
//	owner:     "-> User"             // relation to one User
//	posts:     "-> Post[]"           // relation to many Posts
//	author:    "<- Post.author"      // inverse side of Post.author
//
// # Modifiers
//
// Three modifier marks may follow the base type:
//
//	!  required (the default when no mark is written)
//	?  optional
//	#  unique, which also implies indexed
//
// # Defaults
//
// A trailing "= expr" clause attaches a default expression. The
// expression is captured verbatim and never evaluated, so function
// defaults like "now()" or "uuid()" pass through to the dialect
// untouched.
//
// Definitions are immutable once parsed. The diff engine and the
// migration framework only read them.
package field
