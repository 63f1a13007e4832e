package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DeriveAgeOver evaluates an age-threshold claim from a birth date value.
// birthDate is the raw wire value, possibly containing the configured
// separator (for example "1999-01-01" with separator "-"). pattern names
// the date layout with y, M and d position markers; empty means yyyyMMdd.
// The result is a single-element value list containing the threshold when
// the subject's age at now is at least threshold years, otherwise an empty
// list. The claim is derived so the actual birth date never crosses the
// boundary.
func DeriveAgeOver(birthDate, pattern, separator string, threshold int, now time.Time) ([]string, error) {
	compact := birthDate
	compactPattern := pattern
	if compactPattern == "" {
		compactPattern = "yyyyMMdd"
	}
	if separator != "" {
		compact = strings.ReplaceAll(birthDate, separator, "")
		compactPattern = strings.ReplaceAll(compactPattern, separator, "")
	}
	if len(compact) != len(compactPattern) {
		return nil, ValidationError(
			fmt.Sprintf("birth date %q does not match pattern %q", birthDate, compactPattern), nil)
	}

	var yearDigits, monthDigits, dayDigits strings.Builder
	for i := 0; i < len(compactPattern); i++ {
		switch compactPattern[i] {
		case 'y':
			yearDigits.WriteByte(compact[i])
		case 'M':
			monthDigits.WriteByte(compact[i])
		case 'd':
			dayDigits.WriteByte(compact[i])
		}
	}
	year, err := strconv.Atoi(yearDigits.String())
	if err != nil {
		return nil, ValidationError("birth date year is not numeric", err)
	}
	month, err := strconv.Atoi(monthDigits.String())
	if err != nil {
		return nil, ValidationError("birth date month is not numeric", err)
	}
	day, err := strconv.Atoi(dayDigits.String())
	if err != nil {
		return nil, ValidationError("birth date day is not numeric", err)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, ValidationError(fmt.Sprintf("birth date %q is out of range", birthDate), nil)
	}

	age := now.Year() - year
	if int(now.Month()) < month || (int(now.Month()) == month && now.Day() < day) {
		age--
	}
	if age >= threshold {
		return []string{strconv.Itoa(threshold)}, nil
	}
	return []string{}, nil
}

// DeriveCrossBorderID builds the sector-specific identifier exchanged across
// borders: destination country, origin country, and the national identifier
// joined by the separator, for example "BE/ES/12345".
func DeriveCrossBorderID(originCountry, destinationCountry, value, separator string) string {
	return destinationCountry + separator + originCountry + separator + value
}
