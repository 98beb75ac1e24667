// Package errors provides structured, actionable error messages for the
// eventreduce command line.
//
// Engine failures (cycles, reducer panics, model misuse, reaction storms)
// carry a catalogue code through their Code method. FromEngine turns them
// into an *Error with the registered message and detail, ready to be
// printed:
//
//	if err := reactive.Catch(func() { increment.Fire(1) }); err != nil {
//	    errors.PrintError(errors.FromEngine(err))
//	}
//	// Output:
//	// ERROR E007: Reducer failed
//	//
//	//   A reducer panicked while folding an event. The reduction kept the
//	//   value it had before the event.
//	//
//	//   Learn more: https://eventreduce.dev/docs/errors/E007
//
// # Error Codes
//
//   - E001-E099: engine runtime errors
//   - E120-E139: configuration errors
//   - E140-E159: command line errors
//
// Configuration errors may carry the location inside the config file, in
// which case Format prints the surrounding lines.
package errors
