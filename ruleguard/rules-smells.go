//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Consecutive guards with the same return can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// diagnosisErrors keeps error classification on errors.Is so wrapped
// provider and validation failures still map to the right message key.
func diagnosisErrors(m dsl.Matcher) {
	m.Match(`$err == $target`, `$err != $target`).
		Where(m["err"].Type.Is(`error`) &&
			m["target"].Text.Matches(`^(diagnosis\.)?Err[A-Z]`)).
		Report(`compare sentinel errors with errors.Is($err, $target)`)

	m.Match(`fmt.Errorf($fmt, $*_, $err)`).
		Where(m["err"].Type.Is(`error`) &&
			!m["fmt"].Text.Matches(`%w`)).
		Report(`wrap errors with %w so callers can classify them`)
}

func printing(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`log through logger.Logger instead of printing to stdout`)
}
