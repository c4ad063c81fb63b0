package trial

// Clone returns a deep copy; no slice or map of the result aliases e.
func (e Evidence) Clone() Evidence {
	out := e
	out.Statutes = make([]Statute, len(e.Statutes))
	for i, s := range e.Statutes {
		out.Statutes[i] = s.clone()
	}
	out.Precedents = append([]Precedent(nil), e.Precedents...)
	out.Facts = cloneStrings(e.Facts)
	out.Documents = cloneStrings(e.Documents)
	out.PlaintiffClaims = cloneStrings(e.PlaintiffClaims)
	out.DefendantClaims = cloneStrings(e.DefendantClaims)
	out.DisputedFacts = cloneStrings(e.DisputedFacts)
	return out
}

func (s Statute) clone() Statute {
	out := s
	out.KeyProvisions = cloneStrings(s.KeyProvisions)
	out.Remedies = cloneStrings(s.Remedies)
	if s.Definitions != nil {
		out.Definitions = make(map[string]string, len(s.Definitions))
		for k, v := range s.Definitions {
			out.Definitions[k] = v
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
