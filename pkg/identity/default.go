package identity

// Adding a language is a data change: append an Entry here.
var defaultEntries = []Entry{
	{
		Code:      "en",
		Canonical: "Hi, I’m Saathi – your multilingual farming friend. Ask me anything about agri-waste, farming methods, or help!",
		Triggers:  []string{"who are you", "what are you", "your name", "introduce yourself", "what is saathi", "who is saathi"},
	},
	{
		Code:      "hi",
		Canonical: "नमस्कार! मैं आपका साथी – जो आपकी भाषा में बात करता है और खेती से जुड़े हर सवाल का हल जानता है।",
		Triggers:  []string{"आप कौन हैं", "तुम्हारा नाम क्या है", "अपना परिचय दें", "साथी क्या है", "साथी कौन है", "tum kaun ho", "aap kaun hain", "saathi kaun hai"},
	},
	{
		Code:      "bn",
		Canonical: "নমস্কার! আমি সাথী – যে আপনার ভাষায় বোঝে আর কৃষির বর্জ্যকে রূপান্তর করে আয়ে। চলুন শুরু করি!",
		Triggers:  []string{"আপনি কে", "তোমার নাম কি", "আপনার পরিচয় দিন", "সাথী কি", "সাথী কে", "tumi ke", "apni ke", "saathi ke"},
	},
}

// Default returns the built-in English/Hindi/Bengali table with English as fallback.
func Default() *Table {
	t, err := NewTable("en", defaultEntries...)
	if err != nil {
		panic(err)
	}
	return t
}
