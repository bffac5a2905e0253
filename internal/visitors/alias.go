package visitors

import "hash/fnv"

var aliasAdjectives = []string{
	"Curious", "Happy", "Clever", "Wise", "Playful", "Brave", "Swift", "Gentle", "Smart", "Busy",
	"Bold", "Bright", "Cheerful", "Creative", "Daring", "Eager", "Friendly", "Quiet", "Lively", "Nimble",
	"Patient", "Quick", "Radiant", "Serene", "Spirited", "Steady", "Sunny", "Vivid", "Warm", "Zippy",
}

var aliasAnimals = []string{
	"Panda", "Fox", "Owl", "Otter", "Lion", "Eagle", "Deer", "Raven", "Beaver", "Koala",
	"Sloth", "Hamster", "Cat", "Bear", "Penguin", "Kangaroo", "Parrot", "Giraffe", "Duck", "Raccoon",
	"Dolphin", "Whale", "Seahorse", "Turtle", "Octopus", "Falcon", "Hawk", "Swan", "Crane", "Finch",
}

// VisitorAlias returns an anonymized display name for a fingerprint.
// Stable for a given fingerprint, reveals nothing about the device.
func VisitorAlias(fingerprint string) string {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	index := int(h.Sum32())

	adjIndex := index % len(aliasAdjectives)
	animalIndex := (index / len(aliasAdjectives)) % len(aliasAnimals)

	return aliasAdjectives[adjIndex] + " " + aliasAnimals[animalIndex]
}
