package assistant

// Fallback is returned whenever a request fails
const Fallback = "I'm having trouble reaching the ARGO oceanographic database right now. " +
	"Please try again in a moment, or rephrase your question about ARGO float data."

// Help answers an empty message
const Help = "I can help you explore ARGO oceanographic data. Try asking about:\n" +
	"- temperature patterns in a region, e.g. \"Show me warm water profiles in the Indian Ocean\"\n" +
	"- salinity distributions, e.g. \"Salinity profiles near the equator in March 2023\"\n" +
	"- counts and averages, e.g. \"How many profiles are in the Bay of Bengal?\"\n" +
	"- data quality, e.g. \"Profiles with quality flag A\""
