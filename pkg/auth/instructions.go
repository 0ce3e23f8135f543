package auth

import (
	"fmt"
	"io"
	"strings"
)

// TokenRegistrationURL is where BGG API applications are registered
const TokenRegistrationURL = "https://boardgamegeek.com/using_the_xml_api"

// ShowTokenGuide writes the steps for obtaining and storing a BGG token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BGG API TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The BoardGameGeek XML API requires a bearer token for every request.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Register an application at:")
	fmt.Fprintf(w, "   %s\n", TokenRegistrationURL)
	fmt.Fprintln(w, "2. Copy the token shown for the application.")
	fmt.Fprintln(w, "3. Store it with one of:")
	fmt.Fprintln(w, "   harvester auth set-token bgg          (keychain or encrypted file)")
	fmt.Fprintf(w, "   export %s=\"your_token_here\"\n", EnvVar("bgg"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "`harvester sweep bgg --status` works without a token.")
	fmt.Fprintln(w, rule)
}

// ShowQuickTokenHint is the one-line version for error output
func ShowQuickTokenHint(w io.Writer) {
	fmt.Fprintf(w, "No BGG token found. Register at %s, then run `harvester auth set-token bgg` or export %s.\n",
		TokenRegistrationURL, EnvVar("bgg"))
}

// ShowRejectedTokenHint is printed when BGG answers 401 or 403
func ShowRejectedTokenHint(w io.Writer) {
	fmt.Fprintf(w, "BGG rejected the API token. Check the application at %s, then run `harvester auth set-token bgg` or update %s.\n",
		TokenRegistrationURL, EnvVar("bgg"))
}
