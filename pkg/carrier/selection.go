package carrier

// SelectBest picks the courier with the fewest estimated delivery days,
// breaking exact ties on the lowest rate. Options without an estimate rank
// after every option that has one. Remaining ties keep input order.
func SelectBest(options []CourierOption) (CourierOption, error) {
	if len(options) == 0 {
		return CourierOption{}, ErrNoCourierAvailable
	}

	best := options[0]
	for _, o := range options[1:] {
		if better(o, best) {
			best = o
		}
	}
	return best, nil
}

func better(a, b CourierOption) bool {
	ad, bd := a.EstimatedDeliveryDays, b.EstimatedDeliveryDays
	switch {
	case ad < 0 && bd >= 0:
		return false
	case ad >= 0 && bd < 0:
		return true
	case ad != bd:
		return ad < bd
	}
	return a.Rate < b.Rate
}
