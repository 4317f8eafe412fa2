package config

// DefaultHashtags returns the stock discovery hashtag set, grouped by
// business vertical. Operators can override the whole list in YAML.
func DefaultHashtags() []string {
	return []string{
		// General business
		"smallbusiness", "entrepreneur", "newbusiness", "startuplife", "businessowner",
		"localshop", "shopsmall", "handmadebusiness", "indianbusiness",
		// Beauty and wellness
		"salonowner", "beautysalon", "nailsalon", "spaowner", "skincare", "beautician",
		"makeupstudio", "hairstylist", "dermatologist", "skinclinic",
		// Food and restaurant
		"restaurantowner", "cafeowner", "bakerylife", "foodbusiness", "cloudkitchen",
		"indianrestaurant", "streetfood", "homechef", "cateringbusiness",
		// Health and medical
		"clinicowner", "dentist", "doctorlife", "healthcarebusiness", "medicalclinic",
		"physiotherapy", "ayurvedic", "homeopathy", "veterinary",
		// Fitness
		"fitnesscoach", "gymowner", "personaltrainer", "yogastudio", "fitnesscentre",
		// Retail and fashion
		"boutiqueowner", "fashionboutique", "jewelrystore", "clothingbrand", "onlineshop",
		// Services
		"interiordesigner", "photographer", "eventplanner", "weddingplanner",
		"realestate", "propertydealer", "coachingcentre", "tuitionclasses",
		// Creative
		"artistsoninstagram", "graphicdesigner", "contentcreator", "digitalagency",
	}
}
