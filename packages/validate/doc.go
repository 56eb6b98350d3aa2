// Package validate holds the response predicates shared by mirror REST
// scenarios.
//
// Predicates never return errors: a malformed or failed response simply does
// not pass. MatchesSchema is the exception and explains every violation.
package validate
