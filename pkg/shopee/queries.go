package shopee

const productFields = `
			itemId
			productName
			commissionRate
			sellerCommissionRate
			shopeeCommissionRate
			sales
			imageUrl
			shopId
			shopName
			shopType
			offerLink
			productLink
			priceMin
			priceMax
			ratingStar
			priceDiscountRate
			productCatIds
			periodStartTime
			periodEndTime`

const searchProductsQuery = `query SearchProducts($keyword: String!, $sortType: Int!, $limit: Int!) {
	productOfferV2(keyword: $keyword, sortType: $sortType, limit: $limit) {
		nodes {` + productFields + `
		}
		pageInfo {
			page
			limit
			hasNextPage
		}
	}
}`

const similarProductsQuery = `query SimilarProducts($itemId: Int64!) {
	similarProducts(itemId: $itemId) {
		products {` + productFields + `
		}
	}
}`

const generateShortLinkQuery = `mutation GenerateShortLink($originUrl: String!, $subIds: [String]) {
	generateShortLink(input: {originUrl: $originUrl, subIds: $subIds}) {
		shortLink
	}
}`
